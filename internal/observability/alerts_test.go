package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

func TestAlertRules(t *testing.T) {
	path := filepath.Join("..", "..", "deploy", "prometheus", "alerts", "maintrack.yml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var spec alertSpec
	require.NoError(t, yaml.Unmarshal(data, &spec))
	require.Len(t, spec.Groups, 1)
	group := spec.Groups[0]
	require.Equal(t, "maintrack", group.Name)

	expected := map[string]string{
		"HighErrorRate":   "critical",
		"ForbiddenSpike":  "warning",
		"RoleSyncFailing": "warning",
	}
	require.Len(t, group.Rules, len(expected))

	for _, rule := range group.Rules {
		severity, ok := expected[rule.Alert]
		require.Truef(t, ok, "unexpected rule %q", rule.Alert)
		require.Equalf(t, severity, rule.Labels["severity"], "rule %s severity", rule.Alert)
		require.NotEmptyf(t, rule.Annotations["summary"], "rule %s summary", rule.Alert)
		require.NotEmptyf(t, rule.Annotations["description"], "rule %s description", rule.Alert)
		require.NotEmptyf(t, rule.Annotations["runbook"], "rule %s runbook", rule.Alert)
		require.NotEmptyf(t, rule.Expr, "rule %s expr", rule.Alert)
		require.NotEmptyf(t, rule.For, "rule %s for", rule.Alert)
	}
}
