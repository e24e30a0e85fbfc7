package main

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/org/loginshield/internal/audit"
	"github.com/org/loginshield/internal/auth"
	"github.com/org/loginshield/internal/crypto"
	"github.com/org/loginshield/internal/detection"
	"github.com/org/loginshield/internal/storage"
	"github.com/org/loginshield/internal/validation"
	"github.com/org/loginshield/pkg/models"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

var rootCmd = &cobra.Command{
	Use:   "shieldctl",
	Short: "loginshield CLI",
	Long:  "A CLI for exercising a loginshield server and inspecting its audit trail.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadConfig()
		// Env var overrides are applied in newClient()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format: table, json, raw")
	rootCmd.PersistentFlags().StringVar(&outputField, "field", "", "Print only this field (use with -format=raw)")

	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(hashCmd())
	rootCmd.AddCommand(genSecretCmd())
	rootCmd.AddCommand(signaturesCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(loginCmd(), registerCmd(), logoutCmd(), whoamiCmd(), statusCmd())
}

func prompt(label string) string {
	fmt.Print(label)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()
	return strings.TrimSpace(scanner.Text())
}

// promptPassword reads a password without echo when stdin is a terminal.
func promptPassword(label string) string {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(label)
	}
	fmt.Print(label)
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return ""
	}
	return string(b)
}

// --- local checks ---

func loadDetector(file string) (*detection.Detector, error) {
	if file == "" {
		return detection.NewDetector(nil), nil
	}
	sigs, err := detection.LoadSignatures(file)
	if err != nil {
		return nil, err
	}
	return detection.NewDetector(sigs), nil
}

// checkFields runs injection and tool detection the way the server does for
// a login or registration request.
func checkFields(d *detection.Detector, userAgent string, fields []string) map[string]any {
	f := d.Inspect(userAgent, fields...)
	perField := map[string]any{}
	for i, v := range fields {
		perField[strconv.Itoa(i)] = detection.DetectSQLInjection(v)
	}
	return map[string]any{
		"injection": f.Injection,
		"tool":      f.Tool,
		"sample":    f.Sample,
		"fields":    perField,
	}
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <field> [field ...]",
		Short: "Run injection and tool detection on input fields",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ua, _ := cmd.Flags().GetString("user-agent")
			file, _ := cmd.Flags().GetString("signatures")
			d, err := loadDetector(file)
			if err != nil {
				return err
			}
			printResult(checkFields(d, ua, args))
			return nil
		},
	}
	cmd.Flags().String("user-agent", "", "User-Agent to classify")
	cmd.Flags().String("signatures", "", "YAML signatures file (default: built-in table)")
	return cmd
}

// validateFields reports each registration check separately.
func validateFields(username, email, password, confirm string) map[string]any {
	return map[string]any{
		"username": validation.ValidateUsername(username),
		"email":    validation.ValidateEmail(email),
		"password": validation.ValidatePassword(password, confirm),
		"valid":    validation.ValidateRegistration(username, email, password, confirm) == nil,
	}
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check registration fields against the input format rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			confirm, _ := cmd.Flags().GetString("confirm")
			if confirm == "" {
				confirm = password
			}
			printResult(validateFields(username, email, password, confirm))
			return nil
		},
	}
	cmd.Flags().String("username", "", "Username")
	cmd.Flags().String("email", "", "Email address")
	cmd.Flags().String("password", "", "Password")
	cmd.Flags().String("confirm", "", "Password confirmation (defaults to --password)")
	return cmd
}

func hashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash [password]",
		Short: "Produce a salted bcrypt hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cost, _ := cmd.Flags().GetInt("cost")
			var plain string
			if len(args) > 0 {
				plain = args[0]
			} else {
				plain = promptPassword("Password: ")
			}
			h, err := auth.HashPassword(plain, cost)
			if err != nil {
				return err
			}
			printResult(map[string]any{"hash": h})
			return nil
		},
	}
	cmd.Flags().Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}

func genSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-secret",
		Short: "Generate a random value for session_secret or admin_token",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			printResult(map[string]any{"secret": base64.RawURLEncoding.EncodeToString(key)})
			return nil
		},
	}
}

func signaturesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signatures",
		Short: "List tool signatures in match order",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			d, err := loadDetector(file)
			if err != nil {
				return err
			}
			rows := map[string]any{}
			for i, s := range d.Signatures() {
				rows[fmt.Sprintf("%02d %s", i+1, s.Name)] = strings.Join(s.Tokens, ", ")
			}
			printResult(rows)
			return nil
		},
	}
	cmd.Flags().String("file", "", "YAML signatures file (default: built-in table)")
	return cmd
}

// --- audit ---

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("user", "", "Only events for this user")
	cmd.Flags().String("event-type", "", "Only events of this type")
	cmd.Flags().String("severity", "", "Only events of this severity")
	cmd.Flags().String("since", "", "Only events at or after this RFC3339 time, or a duration like 1h")
	cmd.Flags().Int("limit", 100, "Maximum number of events")
}

// filterFromFlags builds an audit filter. A relative --since is resolved
// against now.
func filterFromFlags(cmd *cobra.Command, now time.Time) (storage.AuditFilter, error) {
	var f storage.AuditFilter
	f.User, _ = cmd.Flags().GetString("user")
	f.EventType, _ = cmd.Flags().GetString("event-type")
	sev, _ := cmd.Flags().GetString("severity")
	f.Severity = models.Severity(strings.ToUpper(sev))
	if f.Severity != "" && !f.Severity.Valid() {
		return f, fmt.Errorf("unknown severity %q", sev)
	}
	f.Limit, _ = cmd.Flags().GetInt("limit")
	since, _ := cmd.Flags().GetString("since")
	if since != "" {
		t, err := parseSince(since, now)
		if err != nil {
			return f, err
		}
		f.Since = &t
	}
	return f, nil
}

func parseSince(s string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: want RFC3339 or a duration", s)
	}
	return t, nil
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "audit", Short: "Inspect the audit trail"}

	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Read events from a local JSON-lines audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := filterFromFlags(cmd, time.Now())
			if err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString("file")
			if path == "" {
				path = cfg.AuditLog
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			events, err := audit.ReadEvents(f, filter)
			if err != nil {
				return err
			}
			printEvents(os.Stdout, events)
			return nil
		},
	}
	addFilterFlags(tailCmd)
	tailCmd.Flags().String("file", "", "Audit log path (default from config)")

	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Query persisted events from the server (requires the admin token)",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := filterFromFlags(cmd, time.Now())
			if err != nil {
				return err
			}
			offset, _ := cmd.Flags().GetInt("offset")
			filter.Offset = offset
			result, err := newClient().get("/v1/sys/audit-log?" + auditQuery(filter).Encode())
			if err != nil {
				printError(err.Error())
				return nil
			}
			if outputFormat == "table" {
				printEvents(os.Stdout, decodeEvents(result["data"]))
				return nil
			}
			printResult(result)
			return nil
		},
	}
	addFilterFlags(queryCmd)
	queryCmd.Flags().Int("offset", 0, "Skip this many newest events")

	cmd.AddCommand(tailCmd, queryCmd)
	return cmd
}

func auditQuery(f storage.AuditFilter) url.Values {
	q := url.Values{}
	if f.User != "" {
		q.Set("user", f.User)
	}
	if f.EventType != "" {
		q.Set("event_type", f.EventType)
	}
	if f.Severity != "" {
		q.Set("severity", string(f.Severity))
	}
	if f.Since != nil {
		q.Set("since", f.Since.UTC().Format(time.RFC3339))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}

// decodeEvents converts the generic JSON "data" array back to events.
func decodeEvents(data any) []*models.AuditEvent {
	items, _ := data.([]any)
	events := make([]*models.AuditEvent, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		e := &models.AuditEvent{}
		e.EventType, _ = m["event_type"].(string)
		e.IPAddress, _ = m["ip_address"].(string)
		if s, ok := m["severity"].(string); ok {
			e.Severity = models.Severity(s)
		}
		if s, ok := m["timestamp"].(string); ok {
			e.Timestamp, _ = time.Parse(time.RFC3339, s)
		}
		if u, ok := m["user"].(string); ok {
			e.User = &u
		}
		e.Details, _ = m["details"].(map[string]any)
		events = append(events, e)
	}
	return events
}

// --- server interaction ---

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and store the session cookie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password = promptPassword("Password: ")
			}
			result, session, err := newClient().postSession("/login", map[string]any{
				"username": args[0],
				"password": password,
			})
			if err != nil {
				printError(err.Error())
				return nil
			}
			cfg.Session = session
			if err := saveConfig(); err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
	cmd.Flags().String("password", "", "Password (prompted if omitted)")
	return cmd
}

func registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register <username> <email>",
		Short: "Create an account and store the session cookie",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password = promptPassword("Password: ")
			}
			confirm, _ := cmd.Flags().GetString("confirm")
			if confirm == "" {
				confirm = password
			}
			result, session, err := newClient().postSession("/register", map[string]any{
				"username":         args[0],
				"email":            args[1],
				"password":         password,
				"confirm_password": confirm,
			})
			if err != nil {
				printError(err.Error())
				return nil
			}
			cfg.Session = session
			if err := saveConfig(); err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
	cmd.Flags().String("password", "", "Password (prompted if omitted)")
	cmd.Flags().String("confirm", "", "Password confirmation (defaults to the password)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := newClient().get("/logout"); err != nil {
				printError(err.Error())
			}
			cfg.Session = ""
			if err := saveConfig(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session's dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := newClient().get("/dashboard")
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := newClient().get("/v1/sys/health")
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}
}
