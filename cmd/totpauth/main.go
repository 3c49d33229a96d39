// Command totpauth is a stand-in host that drives internal/engine against a
// real state file, for manual verification and as a runnable example of
// the conversation contract in internal/hostconv. It is not a PAM module:
// the real deployment target links internal/engine into a shared object
// built with cgo against libpam, which is outside this module's scope
// (spec §1).
package main

import (
	"fmt"
	"os"
	"os/user"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/nsec/totpauth/internal/engine"
	"github.com/nsec/totpauth/internal/options"
	"github.com/nsec/totpauth/pkg/fs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, errOut *os.File) int {
	flagSet := flag.NewFlagSet("totpauth", flag.ContinueOnError)

	policyPath := flagSet.String("policy", "", "optional JSONC file of module option defaults")
	recordPath := flagSet.String("record", "", "atomically write a JSON snapshot of the attempt here")
	uidFlag := flagSet.Int("uid", -1, "numeric uid of the user being authenticated (defaults to the real uid)")
	userFlag := flagSet.String("user", "", "login name of the user being authenticated (defaults to $USER)")
	homeFlag := flagSet.String("home", "", "home directory of the user being authenticated (defaults to $HOME)")

	if err := flagSet.Parse(args); err != nil {
		fmt.Fprintln(errOut, "totpauth:", err)

		return 2
	}

	policy, err := loadPolicy(*policyPath)
	if err != nil {
		fmt.Fprintln(errOut, "totpauth:", err)

		return 2
	}

	opts, err := options.Parse(flagSet.Args())
	if err != nil {
		fmt.Fprintln(errOut, "totpauth:", err)

		return 2
	}

	if !flagContains(flagSet.Args(), "secret=") {
		opts.PathSpec = policy.PathSpec
	}

	opts.NoSkewAdj = opts.NoSkewAdj || policy.NoSkewAdj

	uid, userName, home, err := resolveIdentity(*uidFlag, *userFlag, *homeFlag)
	if err != nil {
		fmt.Fprintln(errOut, "totpauth:", err)

		return 2
	}

	prompter := newLinerPrompter()
	defer prompter.Close()

	audit := &snapshotAuditLog{inner: engine.WriterAuditLog{Out: errOut}}

	cfg := engine.Config{
		FS:        fs.NewReal(),
		PathSpec:  opts.PathSpec,
		Home:      home,
		User:      userName,
		UID:       uid,
		NoSkewAdj: opts.NoSkewAdj,
		Audit:     audit,
	}

	verdict := engine.Authenticate(cfg, prompter)

	if *recordPath != "" {
		if err := writeSnapshot(*recordPath, userName, verdict, audit); err != nil {
			fmt.Fprintln(errOut, "totpauth:", err)
		}
	}

	if verdict == engine.VerdictSuccess {
		return 0
	}

	return 1
}

func resolveIdentity(uidFlag int, userFlag, homeFlag string) (uid int, userName, home string, err error) {
	userName = userFlag
	home = homeFlag

	if uidFlag >= 0 {
		uid = uidFlag
	} else {
		uid = os.Getuid()
	}

	if userName == "" || home == "" {
		u, lookupErr := lookupCurrentUser()
		if lookupErr != nil {
			return 0, "", "", lookupErr
		}

		if userName == "" {
			userName = u.Username
		}

		if home == "" {
			home = u.HomeDir
		}
	}

	return uid, userName, home, nil
}

func lookupCurrentUser() (*user.User, error) {
	if u, err := user.Current(); err == nil {
		return u, nil
	}

	// user.Current can fail in a stripped-down container without cgo's
	// nsswitch path; fall back to $USER/$HOME, which is all the real PAM
	// module would have been handed anyway (spec §1 treats user-database
	// lookup as an external collaborator, not this package's job).
	return &user.User{Username: os.Getenv("USER"), HomeDir: os.Getenv("HOME")}, nil
}

func flagContains(tokens []string, prefix string) bool {
	for _, tok := range tokens {
		if strings.HasPrefix(tok, prefix) {
			return true
		}
	}

	return false
}
