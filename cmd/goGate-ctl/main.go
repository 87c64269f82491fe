// Command goGate-ctl is the operator tool for goGate: it hashes passwords,
// mints tokens and explains gate decisions offline, using the same
// configuration as goGate-server.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/internal/appconfig"
	"github.com/MrEthical07/goGate/jwt"
	"github.com/MrEthical07/goGate/password"
	"github.com/MrEthical07/goGate/policy"
	"github.com/MrEthical07/goGate/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "hash":
		err = cmdHash(args, os.Stdin)
	case "token":
		err = cmdToken(args)
	case "check":
		err = cmdCheck(args)
	case "rules":
		err = cmdRules(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	yellow := color.New(color.FgYellow)

	fmt.Println("Usage: goGate-ctl <command> [flags]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  hash [password]                       Print an Argon2id hash (reads stdin if no argument)")
	fmt.Println("  token -user <name> -roles A,B          Mint an access token with the configured secret")
	fmt.Println("  check -path <p> [-method M] [-token T] Explain the gate decision for a request")
	fmt.Println("  rules                                  Print the active policy table")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  GOGATE_CONFIG       Path to the server config.yaml (optional)")
	fmt.Println("  GOGATE_JWT_SECRET   Signing secret, same as the server")
	fmt.Println("  GOGATE_POLICY_FILE  Policy table (.yaml or .toml)")
	fmt.Println()
}

func cmdHash(args []string, stdin io.Reader) error {
	var raw string
	if len(args) > 0 {
		raw = args[0]
	} else {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading password: %w", err)
		}
		raw = strings.TrimRight(line, "\r\n")
	}

	hasher, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(raw)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func cmdToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	user := fs.String("user", "", "token subject")
	roles := fs.String("roles", "USER", "comma-separated roles")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errors.New("usage: token -user <name> [-roles A,B]")
	}

	engine, err := loadEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	var list []string
	for _, r := range strings.Split(*roles, ",") {
		name, err := engine.Roles().Normalize(r)
		if err != nil {
			return fmt.Errorf("role %q: %w", r, err)
		}
		list = append(list, name)
	}

	token, exp, err := engine.IssueToken(*user, list)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	fmt.Println()
	green.Println("  Token created")
	cyan.Println("  Subject:  " + *user)
	cyan.Println("  Roles:    " + strings.Join(list, ", "))
	cyan.Println("  Expires:  " + exp.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("  " + token)
	fmt.Println()
	return nil
}

func cmdCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	path := fs.String("path", "", "request path")
	method := fs.String("method", "GET", "request method")
	token := fs.String("token", "", "bearer token (without the Bearer prefix)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errors.New("usage: check -path <path> [-method GET] [-token T]")
	}

	engine, err := loadEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	header := ""
	if *token != "" {
		header = "Bearer " + *token
	}
	d := engine.Evaluate(context.Background(), header, *path, *method)

	cyan := color.New(color.FgCyan)
	cyan.Printf("  %s %s\n", strings.ToUpper(*method), *path)
	fmt.Printf("  rule:      %s\n", describeRule(d.Requirement))
	fmt.Printf("  state:     %s\n", d.State)
	if d.Principal != nil {
		fmt.Printf("  principal: %s %v\n", d.Principal.Subject, d.Principal.Roles)
	}
	if *token != "" {
		if _, verr := engine.ValidateToken(*token); verr != nil {
			fmt.Printf("  token:     %v\n", jwt.Kind(verr))
		}
	}

	switch d.Outcome {
	case goGate.Allow:
		color.Green("  %s\n", d.Outcome)
	case goGate.DenyForbidden:
		color.Yellow("  %s\n", d.Outcome)
	default:
		color.Red("  %s\n", d.Outcome)
	}
	return nil
}

func cmdRules(args []string) error {
	if len(args) > 0 {
		return errors.New("rules takes no arguments")
	}
	engine, err := loadEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	yellow := color.New(color.FgYellow)
	yellow.Printf("  %-4s %-28s %-7s %-8s %s\n", "#", "PATTERN", "METHOD", "PRIORITY", "ACCESS")
	for i, r := range engine.Policy().Rules() {
		method := string(r.Method)
		if method == "" {
			method = "*"
		}
		fmt.Printf("  %-4d %-28s %-7s %-8d %s\n", i, r.Pattern, method, r.Priority, access(r.Public, r.Roles))
	}
	fmt.Println("  unmatched paths: authenticated, any role")
	return nil
}

func describeRule(req policy.Requirement) string {
	if req.Index < 0 {
		return "none matched (authenticated, any role)"
	}
	return fmt.Sprintf("#%d %s -> %s", req.Index, req.Rule.Pattern, access(req.Public, req.Roles))
}

func access(public bool, roles []string) string {
	switch {
	case public:
		return "public"
	case len(roles) == 0:
		return "authenticated"
	default:
		return "any of " + strings.Join(roles, ", ")
	}
}

// loadEngine builds an engine over an empty in-memory store; the ctl only
// needs the token and policy halves.
func loadEngine() (*goGate.Engine, error) {
	cfg, err := appconfig.Load(os.Getenv("GOGATE_CONFIG"))
	if err != nil {
		return nil, err
	}
	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return nil, err
	}
	return goGate.New().
		WithConfig(engineCfg).
		WithStore(store.NewMemory()).
		WithMetricsEnabled(false).
		Build()
}
