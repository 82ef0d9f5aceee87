/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/expense-tracker/apiserver/config"
	"github.com/expense-tracker/apiserver/internal/auth"
	"github.com/expense-tracker/apiserver/internal/db"
	"github.com/expense-tracker/apiserver/internal/services"
	"github.com/expense-tracker/apiserver/internal/store"
	"github.com/expense-tracker/apiserver/types"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	userUsername string
	userEmail    string
	userPassword string
	userRole     string
)

// userCmd groups account administration commands.
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account with the given role",
	Long: `Create an account with the given role. The password is prompted for
when --password is omitted. Usage:

	expense-tracker user create --username admin --email admin@example.com --role admin
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := userPassword
		if password == "" {
			fd := int(os.Stdin.Fd())
			var err error
			password, err = readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), term.IsTerminal(fd), func() ([]byte, error) {
				return term.ReadPassword(fd)
			})
			if err != nil {
				return err
			}
		}

		cfg := config.LoadConfig()
		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		userService := services.NewUserService(store.NewUserRepository(conn), auth.NewBcryptHasher(), nil)
		user, err := userService.CreateAccount(cmd.Context(), services.RegisterInput{
			Username: userUsername,
			Email:    userEmail,
			Password: password,
		}, types.Role(strings.ToLower(strings.TrimSpace(userRole))))
		if err != nil {
			return err
		}

		log.Info().Str("id", user.ID).Str("username", user.Username).Str("role", string(user.Role)).Msg("user created")
		fmt.Fprintln(cmd.OutOrStdout(), user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)

	userCreateCmd.Flags().StringVar(&userUsername, "username", "", "account username")
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "account email")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "account password (prompted when omitted)")
	userCreateCmd.Flags().StringVar(&userRole, "role", string(types.RoleUser), "account role: user, admin or superadmin")
	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("email")
}

// readPassword prompts on a terminal without echo, or reads one line from in
// when input is piped.
func readPassword(in io.Reader, prompt io.Writer, interactive bool, readTerminal func() ([]byte, error)) (string, error) {
	if interactive {
		fmt.Fprint(prompt, "Password: ")
		data, err := readTerminal()
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(data), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password is required")
	}
	return line, nil
}
