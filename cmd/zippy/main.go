// Command zippy is a developer CLI for the ZippyPay client core. It wires
// the session store, wallet cache and funding flow the same way the mobile
// shell does, and drives them against a configured backend (the sandbox by
// default). Payments go through the auto-approving static popup, so funding
// only settles against backends that simulate or relay real webhooks.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/zippy-pay/zippy_mobile/internal/api"
	"github.com/zippy-pay/zippy_mobile/internal/beneficiaries"
	"github.com/zippy-pay/zippy_mobile/internal/config"
	"github.com/zippy-pay/zippy_mobile/internal/funding"
	"github.com/zippy-pay/zippy_mobile/internal/logging"
	"github.com/zippy-pay/zippy_mobile/internal/notify"
	"github.com/zippy-pay/zippy_mobile/internal/securestore"
	"github.com/zippy-pay/zippy_mobile/internal/session"
	"github.com/zippy-pay/zippy_mobile/internal/vtu"
	"github.com/zippy-pay/zippy_mobile/internal/wallet"
)

const usage = `usage: zippy <command> [args]

commands:
  register <email> <password> <name> <phone>
  login <email> <password>
  login-biometric
  enable-biometric <email> <password>
  verify-email <email> <code>
  whoami
  logout
  balance
  transactions
  fund <amount>
  airtime <network> <phone> <amount>
  data <network> <phone> <variation> <amount>
  beneficiaries
`

type app struct {
	sessions *session.Service
	cache    *wallet.Cache
	flow     *funding.Flow
	vtu      *vtu.Service
	saved    *beneficiaries.Service
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "zippy: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel)

	store, err := securestore.NewFileStore(cfg.StatePath, []byte(cfg.StateSecret))
	if err != nil {
		return err
	}

	client, err := api.New(cfg.APIBaseURL, cfg.HTTPTimeout, store, logger)
	if err != nil {
		return err
	}

	sessions := session.NewService(client, store, session.StaticAuthenticator{Allow: true}, logger)
	cache := wallet.NewCache(client, sessions, logger)
	notifier := notify.ConsoleNotifier{Out: os.Stdout}
	flow := funding.NewFlow(client, sessions, cache, funding.StaticPopup{}, notifier, funding.Options{
		MinAmount:         cfg.MinFundAmount,
		SettleDelay:       cfg.SettleDelay,
		VerifyInterval:    cfg.VerifyInterval,
		VerifyMaxAttempts: cfg.VerifyMaxAttempts,
	}, logger)

	a := &app{
		sessions: sessions,
		cache:    cache,
		flow:     flow,
		vtu:      vtu.NewService(client, cache, logger),
		saved:    beneficiaries.NewService(client),
	}

	ctx := context.Background()
	return a.dispatch(ctx, command, args)
}

func (a *app) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		if len(args) != 4 {
			return fmt.Errorf("register needs <email> <password> <name> <phone>")
		}
		sess, err := a.sessions.Register(ctx, session.RegisterInput{
			Email: args[0], Password: args[1], FullName: args[2], Phone: args[3],
		})
		if err != nil {
			return err
		}
		fmt.Printf("registered %s (id %d)\n", sess.User.Email, sess.User.ID)
		return nil

	case "login":
		if len(args) != 2 {
			return fmt.Errorf("login needs <email> <password>")
		}
		sess, err := a.sessions.Login(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("logged in as %s\n", sess.User.Email)
		return nil

	case "login-biometric":
		sess, err := a.sessions.LoginWithBiometric(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("logged in as %s\n", sess.User.Email)
		return nil

	case "enable-biometric":
		if len(args) != 2 {
			return fmt.Errorf("enable-biometric needs <email> <password>")
		}
		if err := a.sessions.EnableBiometric(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Println("biometric login enabled")
		return nil

	case "verify-email":
		if len(args) != 2 {
			return fmt.Errorf("verify-email needs <email> <code>")
		}
		if _, err := a.sessions.Resume(ctx); err != nil {
			return err
		}
		sess, err := a.sessions.VerifyEmail(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("verified: %v\n", sess.User.IsVerified)
		return nil

	case "whoami":
		if _, err := a.sessions.Resume(ctx); err != nil {
			return err
		}
		user, err := a.sessions.CurrentUser(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s) verified=%v\n", user.FullName, user.Email, user.IsVerified)
		return nil

	case "logout":
		if err := a.sessions.Logout(); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil

	case "balance":
		if _, err := a.sessions.Resume(ctx); err != nil {
			return err
		}
		if err := a.cache.Refresh(ctx); err != nil {
			return err
		}
		fmt.Printf("balance: ₦%d\n", a.cache.Balance())
		return nil

	case "transactions":
		if _, err := a.sessions.Resume(ctx); err != nil {
			return err
		}
		if err := a.cache.Refresh(ctx); err != nil {
			return err
		}
		for _, tx := range a.cache.Transactions() {
			fmt.Printf("%6d  %-12s  %-8s  ₦%d\n", tx.ID, tx.Type, tx.Status, tx.Amount)
		}
		return nil

	case "fund":
		if len(args) != 1 {
			return fmt.Errorf("fund needs <amount>")
		}
		amount, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q", args[0])
		}
		if _, err := a.sessions.Resume(ctx); err != nil {
			return err
		}
		receipt, err := a.flow.Fund(ctx, amount)
		if err != nil {
			return err
		}
		fmt.Printf("funding %s: reference=%s attempts=%d balance=₦%d\n",
			receipt.State, receipt.Reference, receipt.Attempts, a.cache.Balance())
		return nil

	case "airtime":
		if len(args) != 3 {
			return fmt.Errorf("airtime needs <network> <phone> <amount>")
		}
		amount, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q", args[2])
		}
		if _, err := a.sessions.Resume(ctx); err != nil {
			return err
		}
		res, err := a.vtu.BuyAirtime(ctx, vtu.AirtimeInput{Network: args[0], Phone: args[1], Amount: amount})
		if err != nil {
			return err
		}
		fmt.Printf("%s (tx %d)\n", res.Message, res.Transaction.ID)
		return nil

	case "data":
		if len(args) != 4 {
			return fmt.Errorf("data needs <network> <phone> <variation> <amount>")
		}
		amount, err := strconv.ParseInt(args[3], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q", args[3])
		}
		if _, err := a.sessions.Resume(ctx); err != nil {
			return err
		}
		res, err := a.vtu.BuyData(ctx, vtu.DataInput{Network: args[0], Phone: args[1], VariationCode: args[2], Amount: amount})
		if err != nil {
			return err
		}
		fmt.Printf("%s (tx %d)\n", res.Message, res.Transaction.ID)
		return nil

	case "beneficiaries":
		if _, err := a.sessions.Resume(ctx); err != nil {
			return err
		}
		phones, err := a.saved.ListPhone(ctx)
		if err != nil {
			return err
		}
		for _, b := range phones {
			fmt.Printf("%6d  %-20s  %s (%s)\n", b.ID, b.Name, b.Phone, b.Network)
		}
		return nil

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}
