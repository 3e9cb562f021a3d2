package observability

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type alertFile struct {
	Groups []struct {
		Name  string      `yaml:"name"`
		Rules []alertRule `yaml:"rules"`
	} `yaml:"groups"`
}

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

var metricName = regexp.MustCompile(`scholaris_[a-z_]+`)

func loadRules(t *testing.T) []alertRule {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "scholaris.yml"))
	require.NoError(t, err)

	var file alertFile
	require.NoError(t, yaml.Unmarshal(raw, &file))
	for _, g := range file.Groups {
		if g.Name == "scholaris" {
			return g.Rules
		}
	}
	t.Fatal("scholaris alert group missing")
	return nil
}

func TestAlertRulesSeverityAndRunbook(t *testing.T) {
	expected := map[string]string{
		"HighErrorRate":   "critical",
		"AuthDenialSpike": "warning",
		"OrphanedRecords": "warning",
		"OrphanScanStale": "warning",
	}
	rules := loadRules(t)
	require.Len(t, rules, len(expected))

	runbook, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook-ops.md"))
	require.NoError(t, err)

	for _, rule := range rules {
		severity, ok := expected[rule.Alert]
		require.True(t, ok, "unexpected alert %s", rule.Alert)
		assert.Equal(t, severity, rule.Labels["severity"], rule.Alert)
		assert.NotEmpty(t, rule.For, rule.Alert)
		assert.NotEmpty(t, rule.Annotations["summary"], rule.Alert)

		link := rule.Annotations["runbook"]
		require.True(t, strings.HasPrefix(link, "docs/runbook-ops.md#"), rule.Alert)
		anchor := strings.TrimPrefix(link, "docs/runbook-ops.md#")
		heading := "## " + strings.ReplaceAll(anchor, "-", " ")
		assert.Contains(t, strings.ToLower(string(runbook)), heading, "runbook section for %s", rule.Alert)
	}
}

// Every metric an alert queries must be one the service or worker actually exports.
func TestAlertRulesReferenceExportedMetrics(t *testing.T) {
	exported := map[string]bool{
		"scholaris_http_requests_total":                true,
		"scholaris_auth_gate_decisions_total":          true,
		"scholaris_orphaned_records":                   true,
		"scholaris_job_last_success_timestamp_seconds": true,
	}
	for _, rule := range loadRules(t) {
		for _, name := range metricName.FindAllString(rule.Expr, -1) {
			assert.True(t, exported[name], "%s queries unknown metric %s", rule.Alert, name)
		}
	}
}
