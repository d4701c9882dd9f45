package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	client "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/metrics/export/prometheus"
	"github.com/MrEthical07/goAuthClient/router"
)

// execute runs one invocation. It exists apart from main so tests can drive
// the command tree with their own writers.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := newApp(stdout, stderr)
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "authclient",
		Short: "Session client for the /auth API",
		Long: `authclient logs in against an API exposing /auth/login, /auth/refresh and
friends, keeps the session in a file or Redis, and sends requests through the
same pipeline a browser client would use: bearer token, X-Session-ID, and one
renew-and-retry on 401.

Every flag can also be set as AUTHCLIENT_<FLAG> (dashes become underscores)
or in the file named by --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := load(a.viper, cmd, &a.settings); err != nil {
				return err
			}
			return a.setupLogger()
		},
	}
	addGlobalFlags(root)

	root.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newRefreshCmd(a),
		newStatusCmd(a),
		newRouteCmd(a),
		newCallCmd(a),
		newWatchCmd(a),
	)
	return root
}

func newLoginCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, password := a.viper.GetString("email"), a.viper.GetString("password")
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			sess, err := c.Login(cmd.Context(), client.Credentials{Email: email, Password: password})
			if err != nil {
				return err
			}
			return a.printSession(c, viewOf(sess))
		},
	}
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "account password (or AUTHCLIENT_PASSWORD)")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long:  "Create an account. When the server answers with a token the session is stored as after login.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			sess, err := c.Register(cmd.Context(), client.Registration{
				Name:     a.viper.GetString("name"),
				Email:    a.viper.GetString("email"),
				Password: a.viper.GetString("password"),
			})
			if err != nil {
				return err
			}
			if sess == nil {
				fmt.Fprintln(a.stdout, "registered; run login to start a session")
				return nil
			}
			return a.printSession(c, viewOf(sess))
		},
	}
	cmd.Flags().String("name", "", "display name")
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "account password (or AUTHCLIENT_PASSWORD)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Long:  "End the session. The local session is cleared even when the server call fails.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logout call failed, local session cleared: %w", err)
			}
			fmt.Fprintln(a.stdout, "logged out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Fetch the current user from the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			u, err := c.Me(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJSON(u)
		},
	}
}

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renew the access token now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.Refresh(cmd.Context()); err != nil {
				return err
			}
			sess, err := c.Session(cmd.Context())
			if err != nil {
				return err
			}
			return a.printSession(c, viewOf(sess))
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			sess, err := c.Session(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJSON(viewOf(sess))
		},
	}
}

func newRouteCmd(a *app) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "route <path>",
		Short: "Show what the route guard does with a navigation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if follow {
				to, err := c.Navigate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, to.Path)
				return nil
			}
			fmt.Fprintln(a.stdout, describe(c.Check(cmd.Context(), args[0])))
			return nil
		},
	}
	cmd.Flags().BoolVar(&follow, "follow", false, "follow redirects and print the final path")
	return cmd
}

func describe(d router.Decision) string {
	if d.Outcome == router.Allow {
		return "allow"
	}
	out := "redirect " + d.Path
	if d.Replace {
		out += " (replace)"
	}
	return out
}

func newCallCmd(a *app) *cobra.Command {
	var (
		method string
		data   string
	)
	cmd := &cobra.Command{
		Use:   "call <path>",
		Short: "Send a request through the session pipeline",
		Long: `Send a request through the session pipeline and print the response body.
A 401 triggers one renewal and one retry; any other status is returned as is.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			var body io.Reader
			if data != "" {
				body = strings.NewReader(data)
			}
			req, err := c.NewRequest(cmd.Context(), strings.ToUpper(method), args[0], body)
			if err != nil {
				return err
			}
			if body != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			resp, err := c.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if _, err := io.Copy(a.stdout, resp.Body); err != nil {
				return err
			}
			if resp.StatusCode >= 400 {
				return fmt.Errorf("%s %s: %s", req.Method, args[0], resp.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&method, "method", "X", http.MethodGet, "HTTP method")
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the stored session renewed until interrupted",
		Long: `Resume the stored session and keep renewing it until interrupted. With
--metrics-addr the client counters are served in Prometheus format on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, err := a.open(ctx)
			if err != nil {
				return err
			}
			sess, err := c.Resume(ctx)
			if err != nil {
				return err
			}
			if sess == nil {
				return client.ErrNoSession
			}
			if due, ok := c.RenewalDue(); ok {
				a.logger.Info().Str("tracking_id", sess.TrackingID).Time("due", due).Msg("renewal scheduled")
			}

			if metricsAddr != "" {
				ln, err := net.Listen("tcp", metricsAddr)
				if err != nil {
					return fmt.Errorf("metrics listener: %w", err)
				}
				mux := http.NewServeMux()
				mux.Handle("/metrics", prometheus.NewCollector(c).Handler())
				srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.logger.Error().Err(err).Msg("metrics server stopped")
					}
				}()
				a.logger.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

// printSession prints v with the pending renewal time, if any.
func (a *app) printSession(c *client.Client, v sessionView) error {
	if due, ok := c.RenewalDue(); ok {
		v.RenewalDue = &due
	}
	return a.printJSON(v)
}
