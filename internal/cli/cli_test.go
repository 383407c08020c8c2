package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
)

const plantYAML = `
name: cli-test
timestep: 1h
start_time: "2024-06-01T00:00:00Z"
ed_unit:
  power_single_ed_w: 100000
  number_ed_min: 1
  number_ed_max: 10
seawater: {ph: 8.1, alkalinity_mol_per_kg: 0.0023, dic_mol_per_kg: 0.0021, salinity_psu: 35, temperature_c: 15}
policy:
  partial_threshold_kw: 500
  full_threshold_kw: 900
simulator:
  capture_kg_per_kwh: 0.1
power:
  file: power.csv
  column: wind_kw
cost:
  capex_per_ed_unit_usd: "100000"
  electricity_usd_per_kwh: "0.05"
`

func writePlant(t *testing.T, csv string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "power.csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "plant.yaml")
	if err := os.WriteFile(path, []byte(plantYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := BuildCLI()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	path := writePlant(t, "hour,wind_kw\n0,0\n1,600\n")

	out, err := execute(t, "validate", "-f", path)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(out, "ok (2 steps of 1h0m0s, 10 x 100 kW, policy threshold, simulator linear)") {
		t.Errorf("unexpected output %q", out)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("timestep: nope\n"), 0o644)
	if _, err := execute(t, "validate", "-f", bad); err == nil {
		t.Errorf("expected invalid config to fail")
	}
	if _, err := execute(t, "validate"); err == nil {
		t.Errorf("expected missing --file to fail")
	}
}

func TestRunCommandText(t *testing.T) {
	path := writePlant(t, "hour,wind_kw\n0,0\n1,600\n2,950\n")

	out, err := execute(t, "run", "-f", path, "--log-level", "error")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	lines := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		lines[strings.Join(strings.Fields(line), " ")] = true
	}
	for _, want := range []string{
		"status completed",
		"steps 3 (3.0 h)",
		"co2 captured 0.155 t",
		"energy consumed 1550.0 kWh",
		"full_capture 1.0 h",
		"capex 1000000.00 USD",
	} {
		if !lines[want] {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunCommandJSON(t *testing.T) {
	path := writePlant(t, "hour,wind_kw\n0,600\n1,600\n")

	out, err := execute(t, "run", "-f", path, "--json", "--log-level", "error")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var res struct {
		RunID   string `json:"run_id"`
		Summary struct {
			Status             string  `json:"status"`
			Steps              int     `json:"steps"`
			TotalCO2CapturedKg float64 `json:"total_co2_captured_kg"`
		} `json:"summary"`
		CO2TPY float64 `json:"co2_capture_tpy"`
		Cost   *struct {
			CapexUSD string `json:"capex_usd"`
		} `json:"cost"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if res.RunID == "" || res.Summary.Steps != 2 || res.Summary.TotalCO2CapturedKg != 120 {
		t.Errorf("unexpected result %+v", res)
	}
	// 120 kg over 2 h scales to 525.6 t/yr
	if res.CO2TPY < 525.59 || res.CO2TPY > 525.61 {
		t.Errorf("expected 525.6 t/yr, got %f", res.CO2TPY)
	}
	if res.Cost == nil || res.Cost.CapexUSD != "1000000" {
		t.Errorf("expected cost report, got %+v", res.Cost)
	}
}

func TestRunCommandMissingFile(t *testing.T) {
	if _, err := execute(t, "run", "-f", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected error for missing config")
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings(viper.New(), "")
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if s.HTTPAddr != ":8080" || s.GRPCAddr != ":50051" || s.LogLevel != "info" {
		t.Errorf("unexpected defaults %+v", s)
	}
	if s.ShutdownTimeout != 10*time.Second || s.Redis.TTL != 24*time.Hour {
		t.Errorf("unexpected duration defaults %+v", s)
	}
	if s.MQTT.Broker != "" || s.MQTT.QoS != 1 || s.Callback.MaxRetries != 3 {
		t.Errorf("unexpected defaults %+v", s)
	}
}

func TestLoadSettingsEnvAndFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "docsim.yaml")
	os.WriteFile(file, []byte(`
http_addr: ":9000"
mqtt:
  broker: tcp://broker:1883
  publish_steps: true
redis:
  ttl: 1h
`), 0o644)
	t.Setenv("DOCSIM_HTTP_ADDR", ":9100")
	t.Setenv("DOCSIM_MQTT_TOPIC_PREFIX", "plant-a")
	t.Setenv("DOCSIM_CALLBACK_MAX_RETRIES", "5")

	s, err := LoadSettings(viper.New(), file)
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if s.HTTPAddr != ":9100" {
		t.Errorf("env must override file, got %q", s.HTTPAddr)
	}
	if s.MQTT.Broker != "tcp://broker:1883" || !s.MQTT.PublishSteps || s.MQTT.TopicPrefix != "plant-a" {
		t.Errorf("unexpected mqtt settings %+v", s.MQTT)
	}
	if s.Redis.TTL != time.Hour || s.Callback.MaxRetries != 5 {
		t.Errorf("unexpected settings %+v", s)
	}
}

func TestLoadSettingsErrors(t *testing.T) {
	t.Setenv("DOCSIM_MQTT_QOS", "3")
	if _, err := LoadSettings(viper.New(), ""); err == nil {
		t.Errorf("expected error for qos 3")
	}
	if _, err := LoadSettings(viper.New(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected error for missing settings file")
	}
}

func TestBuildService(t *testing.T) {
	s, err := LoadSettings(viper.New(), "")
	if err != nil {
		t.Fatal(err)
	}
	a := &app{v: viper.New(), settings: s}

	httpAPI, grpcAPI, executor, release, err := a.buildService(context.Background())
	if err != nil {
		t.Fatalf("buildService failed: %v", err)
	}
	defer release()
	if grpcAPI == nil || executor == nil {
		t.Fatalf("expected gRPC server and executor")
	}

	for _, path := range []string{"/healthz", "/metrics", "/v1/runs"} {
		rr := httptest.NewRecorder()
		httpAPI.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, rr.Code)
		}
	}
}

func TestOptimizeCommand(t *testing.T) {
	path := writePlant(t, "hour,wind_kw\n0,300\n1,1500\n")
	best := filepath.Join(t.TempDir(), "best.yaml")

	out, err := execute(t, "optimize", "-f", path, "--max-units", "12", "--json", "-o", best, "--log-level", "error")
	if err != nil {
		t.Fatalf("optimize failed: %v", err)
	}
	var res struct {
		Objective    string  `json:"objective"`
		InitialScore float64 `json:"initial_score"`
		BestScore    float64 `json:"best_score"`
		Converged    bool    `json:"converged"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if res.Objective != "co2_captured" || res.InitialScore != -100 || res.BestScore > -119.999 || !res.Converged {
		t.Errorf("unexpected result %+v", res)
	}

	cfg, err := config.LoadConfig(best)
	if err != nil {
		t.Fatalf("best config does not load: %v", err)
	}
	if cfg.EDUnit.NumberEDMax != 12 || cfg.Steps() != 2 || cfg.Cost == nil {
		t.Errorf("unexpected best config %+v", cfg.EDUnit)
	}

	if _, err := execute(t, "optimize", "-f", path, "--objective", "p95_latency"); err == nil {
		t.Errorf("expected unknown objective to fail")
	}
}

func TestProfileCommand(t *testing.T) {
	out, err := execute(t, "profile", "--type", "bursty", "--steps", "4", "--mean-kw", "100", "--burst-kw", "950", "--burst-steps", "1", "--quiet-steps", "1")
	if err != nil {
		t.Fatalf("profile failed: %v", err)
	}
	want := "hour,power_kw\n0,950.000\n1,100.000\n2,950.000\n3,100.000\n"
	if out != want {
		t.Errorf("expected %q, got %q", want, out)
	}

	// a generated file feeds a run
	dir := filepath.Dir(writePlant(t, "hour,wind_kw\n0,0\n"))
	if _, err := execute(t, "profile", "--type", "constant", "--steps", "3", "--mean-kw", "600", "--column", "wind_kw", "-o", filepath.Join(dir, "power.csv"), "--log-level", "error"); err != nil {
		t.Fatalf("profile to file failed: %v", err)
	}
	res, err := execute(t, "run", "-f", filepath.Join(dir, "plant.yaml"), "--json", "--log-level", "error")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(res, `"total_co2_captured_kg": 180`) {
		t.Errorf("expected 180 kg from three 600 kW steps, got %s", res)
	}

	if _, err := execute(t, "profile", "--type", "tidal"); err == nil {
		t.Errorf("expected unknown profile type to fail")
	}
}
