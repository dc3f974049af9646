package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/vibast-solutions/ms-go-linkhub/app/service"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var (
	createUsername string
	createEmail    string
	createPassword string
	createFullName string
	createAdmin    bool
)

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user, typically the first administrator",
	RunE: func(_ *cobra.Command, _ []string) error {
		password := createPassword
		if password == "" {
			var err error
			if password, err = promptPassword(os.Stdin, int(os.Stdin.Fd()), os.Stdout); err != nil {
				return fmt.Errorf("read password: %w", err)
			}
		}

		svc, closeDB, err := newServicesForCommands()
		if err != nil {
			return err
		}
		defer closeDB()

		user, err := svc.users.CreateByAdmin(context.Background(), service.NewUser{
			Username: createUsername,
			Email:    createEmail,
			Password: password,
			FullName: createFullName,
			IsAdmin:  createAdmin,
		})
		if err != nil {
			if errors.Is(err, service.ErrUserExists) {
				return fmt.Errorf("username or email %q is already taken", createUsername)
			}
			return err
		}

		fmt.Printf("user_id: %d\n", user.ID)
		fmt.Printf("username: %s\n", user.Username)
		fmt.Printf("admin: %t\n", user.IsAdmin)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE: func(_ *cobra.Command, _ []string) error {
		svc, closeDB, err := newServicesForCommands()
		if err != nil {
			return err
		}
		defer closeDB()

		users, err := svc.users.List(context.Background())
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Printf("%d\t%s\t%s\tactive=%t\tadmin=%t\n", u.ID, u.Username, u.Email, u.IsActive, u.IsAdmin)
		}
		return nil
	},
}

var userDeactivateCmd = &cobra.Command{
	Use:   "deactivate <user_id>",
	Short: "Deactivate a user and close their sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		userID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil || userID == 0 {
			return errors.New("invalid user id")
		}

		svc, closeDB, err := newServicesForCommands()
		if err != nil {
			return err
		}
		defer closeDB()

		inactive := false
		if _, err = svc.users.UpdateByAdmin(context.Background(), userID, service.UserChanges{IsActive: &inactive}); err != nil {
			if errors.Is(err, service.ErrUserNotFound) {
				return fmt.Errorf("user %d not found", userID)
			}
			return err
		}
		revoked, err := svc.sessions.RevokeUserSessions(context.Background(), userID)
		if err != nil {
			return err
		}

		fmt.Printf("deactivated user %d, closed %d session(s)\n", userID, revoked)
		return nil
	},
}

func init() {
	userCreateCmd.Flags().StringVar(&createUsername, "username", "", "login name")
	userCreateCmd.Flags().StringVar(&createEmail, "email", "", "email address")
	userCreateCmd.Flags().StringVar(&createPassword, "password", "", "password (prompted when empty)")
	userCreateCmd.Flags().StringVar(&createFullName, "full-name", "", "display name")
	userCreateCmd.Flags().BoolVar(&createAdmin, "admin", false, "grant administrator rights")
	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("email")

	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userDeactivateCmd)
	rootCmd.AddCommand(userCmd)
}

func newServicesForCommands() (*services, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := openDatabase(context.Background(), cfg)
	if err != nil {
		return nil, nil, err
	}
	return newServices(cfg, db), func() { _ = db.Close() }, nil
}

// Swapped in tests to avoid touching the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// promptPassword reads without echo from a terminal and falls back to one line of
// piped input otherwise.
func promptPassword(in io.Reader, fd int, w io.Writer) (string, error) {
	if isTerminal(fd) {
		fmt.Fprint(w, "Password: ")
		pw, err := readPassword(fd)
		fmt.Fprintln(w)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
