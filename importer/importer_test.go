package importer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ipamtools/bamsync/bam"
	"github.com/ipamtools/bamsync/changelog"
	"github.com/ipamtools/bamsync/config"
	"github.com/ipamtools/bamsync/internal/safety"
	"github.com/ipamtools/bamsync/metrics"
	"github.com/ipamtools/bamsync/model"
)

type mockClient struct {
	calls   []string
	handler func(method, path string, body any) (bam.Response, error)
}

func (m *mockClient) Authenticate(ctx context.Context) error { return nil }

func (m *mockClient) Do(ctx context.Context, method, path string, body any) (bam.Response, error) {
	m.calls = append(m.calls, method+" "+path)
	if m.handler != nil {
		return m.handler(method, path, body)
	}
	return bam.Response{Status: http.StatusCreated, Body: []byte(`{}`)}, nil
}

type mockStore struct {
	recorded []model.RunReport
}

func (m *mockStore) Record(ctx context.Context, report model.RunReport) error {
	m.recorded = append(m.recorded, report)
	return nil
}

func (m *mockStore) Runs(ctx context.Context) ([]model.RunReport, error) { return m.recorded, nil }

func (m *mockStore) LastRun(ctx context.Context) (model.RunReport, bool, error) {
	if len(m.recorded) == 0 {
		return model.RunReport{}, false, nil
	}
	return m.recorded[len(m.recorded)-1], true, nil
}

func (m *mockStore) Close() error { return nil }

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "import.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func testConfig() *config.Config {
	return &config.Config{
		Import: config.Import{
			NetworkCIDR: "10.1.1.0/24",
			ViewName:    "Internal",
		},
	}
}

func newTestImporter(cfg *config.Config, client bam.Client, store changelog.Store) *Importer {
	return New(cfg, client, store, metrics.New(false))
}

const twoRoleCSV = `object_type,action,name,role_type,interfaces,ns_record_ttl
dhcp_deployment_role,create,lab-dhcp,PRIMARY,srv1:eth0,
dns_deployment_role,create,lab-dns,STEALTH_SECONDARY,srv1:eth0,3600
`

func TestValidateTwoRoleFile(t *testing.T) {
	client := &mockClient{}
	imp := newTestImporter(testConfig(), client, nil)

	rows, warnings, risks, err := imp.Validate(writeCSV(t, twoRoleCSV), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("rows = %d, want 2", len(rows))
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %d, want 0", len(warnings))
	}
	if len(risks) != 2 {
		t.Fatalf("risk entries = %d, want 2", len(risks))
	}
	for _, r := range risks {
		if r.Risk != model.RiskSafe {
			t.Errorf("risk for %q = %s, want safe", r.Name, r.Risk)
		}
	}
	if len(client.calls) != 0 {
		t.Errorf("validate issued %d remote calls", len(client.calls))
	}
}

func TestApplyDryRunSimulatesWithoutRemoteCalls(t *testing.T) {
	client := &mockClient{}
	imp := newTestImporter(testConfig(), client, nil)

	report, err := imp.Apply(context.Background(), writeCSV(t, twoRoleCSV), Options{DryRun: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(report.Results))
	}
	for _, res := range report.Results {
		if res.Outcome != model.OutcomeSimulated {
			t.Errorf("outcome for %q = %s, want %s", res.Name, res.Outcome, model.OutcomeSimulated)
		}
	}
	if len(client.calls) != 0 {
		t.Errorf("dry run issued %d remote calls", len(client.calls))
	}
}

func TestApplyRejectsIrreversibleBeforeAnyCall(t *testing.T) {
	csv := `object_type,action,name,id,role_type,interfaces
dhcp_deployment_role,delete,old-role,55,,
`
	client := &mockClient{}
	imp := newTestImporter(testConfig(), client, nil)

	_, err := imp.Apply(context.Background(), writeCSV(t, csv), Options{})
	var rejection *safety.RiskRejection
	if !errors.As(err, &rejection) {
		t.Fatalf("expected RiskRejection, got %v", err)
	}
	if len(client.calls) != 0 {
		t.Errorf("rejected run issued %d remote calls, want 0", len(client.calls))
	}
}

func TestApplyResolvesContextAndExecutes(t *testing.T) {
	csv := `name,code,value
dns-servers,6,"[""10.0.0.53""]"
`
	client := &mockClient{
		handler: func(method, path string, body any) (bam.Response, error) {
			switch {
			case method == http.MethodGet && strings.HasPrefix(path, "networks?filter="):
				return bam.Response{Status: http.StatusOK, Body: []byte(`{"count":1,"data":[{"id":101,"name":"lab","type":"IPv4Network"}]}`)}, nil
			case method == http.MethodPost && path == "networks/101/deploymentOptions":
				payload := body.(map[string]any)
				if _, ok := payload["value"].([]any); !ok {
					return bam.Response{}, fmt.Errorf("value not coerced to structured form: %#v", payload["value"])
				}
				return bam.Response{Status: http.StatusCreated, Body: []byte(`{"id":900}`)}, nil
			default:
				return bam.Response{}, fmt.Errorf("unexpected call %s %s", method, path)
			}
		},
	}
	store := &mockStore{}
	imp := newTestImporter(testConfig(), client, store)

	report, err := imp.Apply(context.Background(), writeCSV(t, csv), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Failed() != 0 {
		t.Fatalf("failures: %+v", report.Results)
	}
	if report.Results[0].Outcome != model.OutcomeApplied {
		t.Errorf("outcome = %s, want Applied", report.Results[0].Outcome)
	}

	wantCalls := []string{
		"GET networks?filter=" + "range%3A%2710.1.1.0%2F24%27",
		"POST networks/101/deploymentOptions",
	}
	if len(client.calls) != len(wantCalls) {
		t.Fatalf("calls = %v", client.calls)
	}
	for i, want := range wantCalls {
		if client.calls[i] != want {
			t.Errorf("call %d = %q, want %q", i, client.calls[i], want)
		}
	}

	if len(store.recorded) != 1 {
		t.Fatalf("changelog recorded %d runs, want 1", len(store.recorded))
	}
	if store.recorded[0].RunID != report.RunID {
		t.Error("recorded report does not match returned report")
	}
}

func TestApplyDestructiveOverrideExecutesDelete(t *testing.T) {
	csv := `object_type,action,name,id,role_type,interfaces
dns_deployment_role,delete,old-dns,77,,
`
	client := &mockClient{
		handler: func(method, path string, body any) (bam.Response, error) {
			if method == http.MethodDelete && path == "deploymentRoles/77" {
				return bam.Response{Status: http.StatusNoContent}, nil
			}
			return bam.Response{}, fmt.Errorf("unexpected call %s %s", method, path)
		},
	}
	imp := newTestImporter(testConfig(), client, nil)

	report, err := imp.Apply(context.Background(), writeCSV(t, csv), Options{AllowDestructive: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Results[0].Outcome != model.OutcomeApplied {
		t.Errorf("outcome = %s, want Applied", report.Results[0].Outcome)
	}
}

func TestApplyRequiresConfiguredParents(t *testing.T) {
	cfg := &config.Config{} // no networkCidr, no viewName
	imp := newTestImporter(cfg, &mockClient{}, nil)

	_, err := imp.Apply(context.Background(), writeCSV(t, twoRoleCSV), Options{DryRun: true})
	if err == nil || !strings.Contains(err.Error(), "networkCidr") {
		t.Fatalf("expected missing networkCidr error, got %v", err)
	}
}

func TestApplySecondRunIsIdempotent(t *testing.T) {
	csv := `name,code,value
domain-name,15,internal.example.com
`
	created := false
	client := &mockClient{
		handler: func(method, path string, body any) (bam.Response, error) {
			if method == http.MethodGet {
				return bam.Response{Status: http.StatusOK, Body: []byte(`{"data":[{"id":101}]}`)}, nil
			}
			if created {
				return bam.Response{Status: http.StatusConflict, Body: []byte(`{"status":409}`)}, nil
			}
			created = true
			return bam.Response{Status: http.StatusCreated, Body: []byte(`{"id":1}`)}, nil
		},
	}
	imp := newTestImporter(testConfig(), client, nil)
	path := writeCSV(t, csv)

	first, err := imp.Apply(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if first.Results[0].Outcome != model.OutcomeApplied {
		t.Errorf("first run outcome = %s", first.Results[0].Outcome)
	}

	second, err := imp.Apply(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if second.Results[0].Outcome != model.OutcomeAlreadyExists {
		t.Errorf("second run outcome = %s, want AlreadyExists", second.Results[0].Outcome)
	}
}

func TestApplyStrictParseFailureAbortsRun(t *testing.T) {
	csv := `object_type,action,name,role_type,interfaces
dhcp_deployment_role,create,bad-role,BOGUS,srv1:eth0
`
	client := &mockClient{}
	imp := newTestImporter(testConfig(), client, nil)

	_, err := imp.Apply(context.Background(), writeCSV(t, csv), Options{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(client.calls) != 0 {
		t.Errorf("failed validation issued %d remote calls", len(client.calls))
	}
}
