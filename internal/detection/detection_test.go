package detection

import "testing"

func TestDetectSQLInjection(t *testing.T) {
	flagged := []string{
		"attacker' OR '1'='1",
		"O'Brien",
		"admin--",
		"x /* comment",
		"comment */",
		"a; b",
		"1 or 1",
		"x AND \"y\"",
		"select",
		"Union all",
		"DROP table users",
		"please delete me",
		"insert",
		"update",
	}
	for _, s := range flagged {
		if !DetectSQLInjection(s) {
			t.Errorf("DetectSQLInjection(%q) = false, want true", s)
		}
	}

	clean := []string{
		"",
		"alice",
		"Alice2024",
		"orange",
		"selected",
		"android",
		"unionized",
		"Abcdef1",
	}
	for _, s := range clean {
		if DetectSQLInjection(s) {
			t.Errorf("DetectSQLInjection(%q) = true, want false", s)
		}
	}
}

func TestDetectToolUserAgent(t *testing.T) {
	d := NewDetector(nil)
	tests := []struct {
		ua   string
		want string
	}{
		{"sqlmap/1.7.2#stable (https://sqlmap.org)", "sqlmap"},
		{"Mozilla/5.00 (Nikto/2.1.6)", "nikto"},
		{"curl/8.4.0", "curl"},
		{"Wget/1.21.4", "wget"},
		{"python-requests/2.31.0", "python-requests"},
		{"Python-urllib/3.11", "python-requests"},
		{"PostmanRuntime/7.36.0", "postman"},
		{"Mozilla/5.0 (X11; Linux x86_64) HeadlessChrome/120.0", "headless"},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) Firefox/121.0", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := d.DetectTool(tt.ua, ""); got != tt.want {
			t.Errorf("DetectTool(%q) = %q, want %q", tt.ua, got, tt.want)
		}
	}
}

func TestDetectToolFirstMatchWins(t *testing.T) {
	ua := "sqlmap via curl/8.0"
	if got := NewDetector(nil).DetectTool(ua, ""); got != "sqlmap" {
		t.Errorf("default order: got %q, want sqlmap", got)
	}

	reordered := NewDetector([]Signature{
		{Name: "curl", Tokens: []string{"CURL/"}},
		{Name: "sqlmap", Tokens: []string{"sqlmap"}},
	})
	if got := reordered.DetectTool(ua, ""); got != "curl" {
		t.Errorf("custom order: got %q, want curl", got)
	}
}

func TestDetectToolPayloadFallback(t *testing.T) {
	d := NewDetector(nil)
	browser := "Mozilla/5.0 Firefox/121.0"

	if got := d.DetectTool(browser, "admin' OR 1=1 --"); got != ToolSQLInjectionPayload {
		t.Errorf("or 1=1 payload: got %q", got)
	}
	if got := d.DetectTool(browser, "1 UNION SELECT password FROM users"); got != ToolSQLInjectionPayload {
		t.Errorf("union select payload: got %q", got)
	}
	if got := d.DetectTool(browser, "alice secret"); got != "" {
		t.Errorf("clean payload: got %q, want empty", got)
	}
	// A user-agent match takes precedence over the payload.
	if got := d.DetectTool("curl/8.0", "x UNION SELECT y"); got != "curl" {
		t.Errorf("ua precedence: got %q, want curl", got)
	}
}

func TestPayloadSample(t *testing.T) {
	if got := PayloadSample("a", "b", "c", "d"); got != "a b c" {
		t.Errorf("PayloadSample = %q, want %q", got, "a b c")
	}
	if got := PayloadSample("a"); got != "a" {
		t.Errorf("PayloadSample = %q, want %q", got, "a")
	}
}

func TestInspect(t *testing.T) {
	d := NewDetector(nil)

	f := d.Inspect("sqlmap/1.7", "attacker' OR '1'='1", "pw")
	if !f.Injection {
		t.Error("expected injection")
	}
	if f.Tool != "sqlmap" {
		t.Errorf("tool = %q, want sqlmap", f.Tool)
	}
	if f.Sample != "attacker' OR '1'='1 pw" {
		t.Errorf("sample = %q", f.Sample)
	}

	f = d.Inspect("curl/8.0", "alice", "Abcdef1")
	if f.Injection {
		t.Error("clean fields flagged")
	}
	if f.Tool != "curl" {
		t.Errorf("tool = %q, want curl", f.Tool)
	}
}

func TestLoadSignaturesFromBytes(t *testing.T) {
	data := []byte(`
signatures:
  - name: zgrab
    tokens: ["zgrab"]
  - name: burp
    tokens: ["burp", "burpsuite"]
`)
	sigs, err := LoadSignaturesFromBytes(data)
	if err != nil {
		t.Fatalf("LoadSignaturesFromBytes: %v", err)
	}
	if len(sigs) != 2 || sigs[0].Name != "zgrab" || sigs[1].Name != "burp" {
		t.Fatalf("unexpected table: %+v", sigs)
	}

	d := NewDetector(sigs)
	if got := d.DetectTool("Mozilla/5.0 zgrab/0.x", ""); got != "zgrab" {
		t.Errorf("got %q, want zgrab", got)
	}
	if got := d.DetectTool("curl/8.0", ""); got != "" {
		t.Errorf("custom table should not know curl, got %q", got)
	}
}

func TestLoadSignaturesRejectsIncomplete(t *testing.T) {
	if _, err := LoadSignaturesFromBytes([]byte("signatures:\n  - tokens: [x]\n")); err == nil {
		t.Error("expected error for missing name")
	}
	if _, err := LoadSignaturesFromBytes([]byte("signatures:\n  - name: x\n")); err == nil {
		t.Error("expected error for missing tokens")
	}
	if _, err := LoadSignaturesFromBytes([]byte("signatures: [")); err == nil {
		t.Error("expected parse error")
	}
}
