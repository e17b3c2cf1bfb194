package main

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/uwdesk/decisioncore/internal/config"
	"github.com/uwdesk/decisioncore/internal/platform/auth"
	"github.com/uwdesk/decisioncore/internal/platform/db"
	"github.com/uwdesk/decisioncore/internal/platform/telemetry"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:                 "development",
		CORSOrigins:         []string{"http://localhost:3000"},
		RateLimitRPS:        100,
		RateLimitBurst:      200,
		BodyLimit:           "2M",
		ExtractionBodyLimit: "8M",
		NarrativeVariant:    "template",
		AssemblyVersion:     "narrative-2.1.0",
	}
}

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadEngines_Defaults(t *testing.T) {
	eng, err := loadEngines(testConfig(), "")
	if err != nil {
		t.Fatalf("loadEngines: %v", err)
	}
	if eng.scorer.ModelVersion() != "rules-v1" {
		t.Errorf("expected rules-v1, got %s", eng.scorer.ModelVersion())
	}
	if len(eng.assemblers) != 2 {
		t.Fatalf("expected 2 assemblers, got %d", len(eng.assemblers))
	}
	if _, err := eng.assembler("phrase_block"); err != nil {
		t.Errorf("phrase_block assembler missing: %v", err)
	}
	if _, err := eng.assembler("freeform"); err == nil {
		t.Error("expected error for unknown variant")
	}
}

func TestLoadEngines_BadDictionaryPath(t *testing.T) {
	if _, err := loadEngines(testConfig(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing dictionary")
	}
}

func TestNewEcho_Routes(t *testing.T) {
	eng, err := loadEngines(testConfig(), "")
	if err != nil {
		t.Fatalf("loadEngines: %v", err)
	}
	e := newEcho(testConfig(), zerolog.Nop(), eng, nil, telemetry.NewProvider())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}

	body := `{"text":"Patient denies diabetes but has hypertension since 2015, on Amlodipine 5mg OD"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extractions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("extractions: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Conditions []struct {
			CanonicalName string `json:"canonical_name"`
		} `json:"conditions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Conditions) != 1 || result.Conditions[0].CanonicalName != "Hypertension" {
		t.Errorf("unexpected conditions %+v", result.Conditions)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/communications", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("communications should not be routed without a service, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/models", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"test_yield_hba1c"`) {
		t.Errorf("models: expected 200 with panel tables, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `route="/api/v1/extractions",status_code="200"`) {
		t.Errorf("expected extraction request in metrics:\n%s", rec.Body.String())
	}
}

func TestNewEcho_BearerAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Env = "production"
	cfg.AuthSigningKey = "test-signing-key"
	eng, err := loadEngines(cfg, "")
	if err != nil {
		t.Fatalf("loadEngines: %v", err)
	}
	e := newEcho(cfg, zerolog.Nop(), eng, nil, telemetry.NewProvider())

	body := `{"applicant":{"age":40},"sum_assured":2500000,"disclosures":[]}`
	send := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/complexity-assessments", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}
	sign := func(roles ...string) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "uw.priya"},
			Roles:            roles,
		})
		s, err := tok.SignedString([]byte(cfg.AuthSigningKey))
		if err != nil {
			t.Fatal(err)
		}
		return s
	}

	if code := send(""); code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", code)
	}
	if code := send(sign("auditor")); code != http.StatusForbidden {
		t.Errorf("expected 403 without an underwriting role, got %d", code)
	}
	if code := send(sign(auth.RoleUnderwriter)); code != http.StatusOK {
		t.Errorf("expected 200 for underwriter, got %d", code)
	}

	// health stays public
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected public health check, got %d", rec.Code)
	}
}

func TestExtractCommand(t *testing.T) {
	path := writeFile(t, "note.txt", "Known case of hypertension. HbA1c 7.2%")
	out, err := runCmd(t, "", "extract", "--file", path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(out, `"canonical_name": "Hypertension"`) {
		t.Errorf("expected Hypertension in output, got %s", out)
	}
}

func TestExtractCommand_EmptyInput(t *testing.T) {
	if _, err := runCmd(t, "   ", "extract"); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestScoreComplexityCommand_Stdin(t *testing.T) {
	snap := `{"applicant":{"age":52,"bmi":31.5,"smoking_status":"current"},"sum_assured":10000000,
		"disclosures":[{"disclosure_type":"medical_condition","condition_name":"Type 2 Diabetes"}]}`
	out, err := runCmd(t, snap, "score", "complexity")
	if err != nil {
		t.Fatalf("score complexity: %v", err)
	}
	var res struct {
		Tier         string `json:"tier"`
		ModelVersion string `json:"model_version"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if res.Tier == "" || res.ModelVersion != "rules-v1" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestScoreYieldCommand(t *testing.T) {
	path := writeFile(t, "case.json", `{"applicant":{"age":45},"sum_assured":5000000,"disclosures":[]}`)
	out, err := runCmd(t, "", "score", "yield", "--case", path, "--test", "HBA1C", "--test", "ECG")
	if err != nil {
		t.Fatalf("score yield: %v", err)
	}
	var res []struct {
		TestCode string `json:"test_code"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res) != 2 || res[0].TestCode != "HBA1C" || res[1].TestCode != "ECG" {
		t.Errorf("unexpected results %+v", res)
	}
}

func TestScoreYieldCommand_RequiresTest(t *testing.T) {
	if _, err := runCmd(t, `{"applicant":{}}`, "score", "yield"); err == nil {
		t.Fatal("expected error without --test")
	}
}

func TestScoreCommand_RejectsInvalidSnapshot(t *testing.T) {
	if _, err := runCmd(t, `{"applicant":{"age":150}}`, "score", "complexity"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestAssembleCommand(t *testing.T) {
	req := `{"communication_type":"standard_acceptance","case_context":{"applicant_name":"Asha Rao",
		"case_reference":"UW-2024-0042","product_name":"SecureLife Term","sum_assured":5000000}}`
	path := writeFile(t, "request.json", req)
	out, err := runCmd(t, "", "assemble", "--request", path, "--variant", "phrase_block")
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	var comm struct {
		Status   string `json:"status"`
		Metadata struct {
			Variant string `json:"variant"`
		} `json:"metadata"`
		Sections []json.RawMessage `json:"sections"`
	}
	if err := json.Unmarshal([]byte(out), &comm); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if comm.Status != "draft" || comm.Metadata.Variant != "phrase_block" {
		t.Errorf("unexpected communication %+v", comm)
	}
	if len(comm.Sections) == 0 {
		t.Error("expected sections")
	}
}

func TestAssembleCommand_UnknownVariant(t *testing.T) {
	if _, err := runCmd(t, "{}", "assemble", "--variant", "freeform"); err == nil {
		t.Fatal("expected error for unknown variant")
	}
}

func TestMigrationSource_Embedded(t *testing.T) {
	src := migrationSource(testConfig(), "")
	matches, err := fs.Glob(src, "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) == 0 || matches[0] != "001_communication.sql" {
		t.Errorf("unexpected embedded migrations %v", matches)
	}
}

func TestMigrationSource_DirOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "007_extra.sql"), []byte("SELECT 1;"), 0o600); err != nil {
		t.Fatal(err)
	}
	matches, _ := fs.Glob(migrationSource(testConfig(), dir), "*.sql")
	if len(matches) != 1 || matches[0] != "007_extra.sql" {
		t.Errorf("expected dir override, got %v", matches)
	}
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, "public", []db.MigrationStatus{
		{Version: 1, Name: "communication", Applied: true},
		{Version: 2, Name: "indexes"},
	})
	out := buf.String()
	if !strings.Contains(out, "schema: public") || !strings.Contains(out, "applied") || !strings.Contains(out, "pending") {
		t.Errorf("unexpected status output:\n%s", out)
	}
}
