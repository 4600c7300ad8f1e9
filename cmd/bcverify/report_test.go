package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chazu/bcverify/config"
	"github.com/chazu/bcverify/diag"
	"github.com/chazu/bcverify/wire"
)

func sampleReport() *wire.Report {
	return &wire.Report{
		RunID:   "run-1",
		Started: time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local),
		Elapsed: 1500 * time.Microsecond,
		Status:  diag.Error,
		Methods: []wire.MethodReport{
			{Method: "Calc.ok", Status: diag.OK},
			{Method: "Calc.undefined", Status: diag.Warning, Warnings: 1, Messages: []wire.Message{
				{Offset: 2, Kind: "UndefinedRegister", Severity: diag.SeverityWarning, Text: "v3 read before assignment"},
			}},
			{Method: "Calc.badjump", Status: diag.Error, Err: "jump target 0063 outside code"},
		},
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf}
	p.report(sampleReport())
	if p.err != nil {
		t.Fatal(p.err)
	}
	out := buf.String()

	for _, want := range []string{
		"run run-1  2026-03-01 12:00:00",
		"  Calc.ok         OK\n",
		"  Calc.undefined  WARNING  (0 errors, 1 warnings)\n",
		"      0002 warning [UndefinedRegister] v3 read before assignment\n",
		"      jump target 0063 outside code\n",
		"3 methods: 1 ok, 1 warning, 1 error; result ERROR\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("uncoloured report contains escape codes:\n%s", out)
	}
}

func TestPrintReportQuiet(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf, quiet: true}
	p.report(sampleReport())
	out := buf.String()
	if strings.Contains(out, "Calc.ok ") {
		t.Errorf("quiet report lists passing method:\n%s", out)
	}
	// Alignment follows the widest shown name.
	if !strings.Contains(out, "  Calc.badjump    ERROR\n") {
		t.Errorf("unexpected alignment:\n%s", out)
	}
}

func TestPrintReportColor(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf, color: true}
	p.report(sampleReport())
	if !strings.Contains(buf.String(), ansiRed+"ERROR"+ansiReset) {
		t.Errorf("coloured report missing red ERROR:\n%s", buf.String())
	}
}

func TestWriteReportCBOR(t *testing.T) {
	var buf bytes.Buffer
	if err := writeReport(&buf, sampleReport(), &verifyFlags{format: "cbor"}); err != nil {
		t.Fatal(err)
	}
	got, err := wire.UnmarshalReport(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if got.RunID != "run-1" || len(got.Methods) != 3 {
		t.Errorf("decoded report = %+v", got)
	}

	if err := writeReport(&buf, sampleReport(), &verifyFlags{format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

const cliProgram = `
classes:
  - name: Calc
    methods:
      - name: ok
        static: true
        returns: i32
        vregs: 1
        code: |
          ldai 7
          return
      - name: bad
        static: true
        returns: i32
        vregs: 1
        code: |
          lda.str "x"
          return
`

func writeProgram(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.yaml")
	if err := os.WriteFile(path, []byte(cliProgram), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, config.FileName), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	root.SetArgs(append([]string{"--config", dir}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestVerifyCommand(t *testing.T) {
	path := writeProgram(t)

	out, err := runCLI(t, "verify", path, "-m", "Calc.ok")
	if err != nil {
		t.Fatalf("verify Calc.ok: %v\n%s", err, out)
	}
	if !strings.Contains(out, "result OK") {
		t.Errorf("output:\n%s", out)
	}

	out, err = runCLI(t, "verify", path)
	if err != errFailed {
		t.Fatalf("verify all: err = %v, want errFailed\n%s", err, out)
	}
	if !strings.Contains(out, "Calc.bad") || !strings.Contains(out, "BadReturnType") {
		t.Errorf("output:\n%s", out)
	}

	if _, err := runCLI(t, "verify", path, "--message", "nonsense"); err == nil {
		t.Error("expected error for malformed --message")
	}
	if _, err := runCLI(t, "verify", path, "-m", "Calc.missing"); err == nil {
		t.Error("expected error for unknown method")
	}
}

func TestDisasmCommand(t *testing.T) {
	out, err := runCLI(t, "disasm", writeProgram(t), "-m", "Calc.ok")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Calc.ok") || !strings.Contains(out, "ldai") || !strings.Contains(out, "return") {
		t.Errorf("output:\n%s", out)
	}
}
