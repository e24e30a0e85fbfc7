// Package detection flags SQL-injection shaped input and fingerprints known
// scanning and automation tools from client metadata. Results are advisory:
// the caller decides what to reject.
package detection

import (
	"regexp"
	"strings"
)

// ToolSQLInjectionPayload is reported when no user-agent signature matched
// but the payload carries a classic boolean-based injection.
const ToolSQLInjectionPayload = "sql_injection_payload"

// sampleFields is how many supplied fields make up a payload sample.
const sampleFields = 3

var sqliRe = regexp.MustCompile(`(?i)('|--|\b(OR|AND)\b\s+['"]?\w+|;|/\*|\*/|\b(SELECT|INSERT|UPDATE|DELETE|DROP|UNION)\b)`)

var payloadMarkers = []string{"union select", " or 1=1"}

// Signature maps a tool name to the lower-case substrings that identify it
// in a User-Agent header.
type Signature struct {
	Name   string   `yaml:"name"`
	Tokens []string `yaml:"tokens"`
}

// DefaultSignatures is the built-in fingerprint table. Order matters: the
// first matching entry wins.
var DefaultSignatures = []Signature{
	{Name: "sqlmap", Tokens: []string{"sqlmap"}},
	{Name: "nikto", Tokens: []string{"nikto"}},
	{Name: "nmap", Tokens: []string{"nmap"}},
	{Name: "curl", Tokens: []string{"curl/"}},
	{Name: "wget", Tokens: []string{"wget/"}},
	{Name: "python-requests", Tokens: []string{"python-requests", "python-urllib"}},
	{Name: "postman", Tokens: []string{"postman"}},
	{Name: "insomnia", Tokens: []string{"insomnia"}},
	{Name: "masscan", Tokens: []string{"masscan"}},
	{Name: "acunetix", Tokens: []string{"acunetix"}},
	{Name: "nessus", Tokens: []string{"nessus"}},
	{Name: "headless", Tokens: []string{"headlesschrome", "headless"}},
}

// Detector matches requests against an ordered signature table. It is
// read-only after construction and safe for concurrent use.
type Detector struct {
	signatures []Signature
}

// NewDetector returns a Detector over sigs. A nil or empty table falls back
// to DefaultSignatures. Tokens are lower-cased once here.
func NewDetector(sigs []Signature) *Detector {
	if len(sigs) == 0 {
		sigs = DefaultSignatures
	}
	table := make([]Signature, 0, len(sigs))
	for _, s := range sigs {
		tokens := make([]string, 0, len(s.Tokens))
		for _, tok := range s.Tokens {
			if tok = strings.ToLower(tok); tok != "" {
				tokens = append(tokens, tok)
			}
		}
		table = append(table, Signature{Name: s.Name, Tokens: tokens})
	}
	return &Detector{signatures: table}
}

// Signatures returns a copy of the table in match order.
func (d *Detector) Signatures() []Signature {
	out := make([]Signature, len(d.signatures))
	copy(out, d.signatures)
	return out
}

// DetectSQLInjection reports whether field looks like an SQL injection
// attempt. It is a heuristic; false positives are expected.
func DetectSQLInjection(field string) bool {
	if field == "" {
		return false
	}
	return sqliRe.MatchString(field)
}

// DetectTool returns the name of the first signature whose token appears in
// the user agent. Failing that, it returns ToolSQLInjectionPayload if the
// payload sample contains a boolean-based injection, or "" if nothing matched.
func (d *Detector) DetectTool(userAgent, payloadSample string) string {
	ua := strings.ToLower(userAgent)
	if ua != "" {
		for _, sig := range d.signatures {
			for _, tok := range sig.Tokens {
				if strings.Contains(ua, tok) {
					return sig.Name
				}
			}
		}
	}

	ps := strings.ToLower(payloadSample)
	for _, m := range payloadMarkers {
		if strings.Contains(ps, m) {
			return ToolSQLInjectionPayload
		}
	}
	return ""
}

// PayloadSample joins the first few supplied fields with a space.
func PayloadSample(fields ...string) string {
	if len(fields) > sampleFields {
		fields = fields[:sampleFields]
	}
	return strings.Join(fields, " ")
}

// Finding is the combined result of inspecting one request.
type Finding struct {
	Injection bool
	Tool      string
	Sample    string
}

// Inspect checks every non-empty field for injection and fingerprints the
// client. The tool is reported whether or not an injection was found.
func (d *Detector) Inspect(userAgent string, fields ...string) Finding {
	f := Finding{Sample: PayloadSample(fields...)}
	f.Tool = d.DetectTool(userAgent, f.Sample)
	for _, field := range fields {
		if DetectSQLInjection(field) {
			f.Injection = true
			break
		}
	}
	return f
}
