// ewaste - E-waste collection marketplace
// Copyright (C) 2025  ewaste contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jredh-dev/ewaste/internal/analytics"
	"github.com/jredh-dev/ewaste/internal/client"
	"github.com/jredh-dev/ewaste/internal/session"
	"github.com/jredh-dev/ewaste/internal/valuation"
	"github.com/jredh-dev/ewaste/pkg/models"
)

// --- Account ---

func registerCmd(a *app) *cobra.Command {
	var email, password, name, phone, certificate string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
	}
	cmd.PersistentFlags().StringVar(&email, "email", "", "Email address")
	cmd.PersistentFlags().StringVar(&password, "password", "", "Password (prompted when empty)")
	cmd.PersistentFlags().StringVar(&name, "name", "", "Username or company name")
	cmd.PersistentFlags().StringVar(&phone, "phone", "", "Mobile or company phone")

	user := &cobra.Command{
		Use:   "user",
		Short: "Register as an individual",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passwordOrPrompt(cmd, password)
			if err != nil {
				return err
			}
			sess, err := a.api.RegisterUser(cmd.Context(), client.UserRegistration{
				Email: email, Password: pw, Username: name, Mobile: phone,
			})
			if err != nil {
				return err
			}
			return a.finishSignIn(cmd.Context(), cmd.OutOrStdout(), sess)
		},
	}

	company := &cobra.Command{
		Use:   "company",
		Short: "Register as a recycling company",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passwordOrPrompt(cmd, password)
			if err != nil {
				return err
			}
			sess, err := a.api.RegisterCompany(cmd.Context(), client.CompanyRegistration{
				Email: email, Password: pw, CompanyName: name, Phone: phone, Certificate: certificate,
			})
			if err != nil {
				return err
			}
			return a.finishSignIn(cmd.Context(), cmd.OutOrStdout(), sess)
		},
	}
	company.Flags().StringVar(&certificate, "certificate", "", "Recycling certificate reference")

	cmd.AddCommand(user, company)
	return cmd
}

func loginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passwordOrPrompt(cmd, password)
			if err != nil {
				return err
			}
			sess, err := a.api.Login(cmd.Context(), email, pw)
			if err != nil {
				return err
			}
			return a.finishSignIn(cmd.Context(), cmd.OutOrStdout(), sess)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when empty)")
	return cmd
}

// finishSignIn moves the session machine to the new principal and only then
// stores the token.
func (a *app) finishSignIn(ctx context.Context, out io.Writer, sess *client.Session) error {
	a.api.SetToken(sess.Token)
	st, err := a.machine.SignIn(ctx, &models.Identity{
		ID:    sess.Principal.ID,
		Email: sess.Principal.Email,
		Role:  sess.Principal.Role,
	})
	if errors.Is(err, session.ErrNoRole) {
		return errors.New("this account has no user or company profile")
	}
	if err != nil {
		return err
	}
	sess.Principal = st.Principal
	a.session.signIn(sess)
	if err := a.save(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Signed in as %s (%s)\n", st.Principal.Email, st.Principal.Role)
	return nil
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.session.Token != "" {
				// The local session is cleared even if the server call fails.
				if err := a.api.Logout(cmd.Context()); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
				}
			}
			a.machine.SignOut()
			a.session.signOut()
			if err := a.save(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireRole(models.RoleNone); err != nil {
				return err
			}
			me, err := a.api.Me(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", me.Principal.Email, me.Principal.Role)
			if me.User != nil {
				fmt.Fprintf(out, "Username:   %s\nMobile:     %s\nEco points: %d\n",
					me.User.Username, me.User.Mobile, me.User.EcoPoints)
			}
			if me.Company != nil {
				printCompany(out, me.Company)
			}
			return nil
		},
	}
}

// --- Public lookups ---

func estimateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "estimate WEIGHT_KG",
		Short: "Preview the value of an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			est, err := a.api.Estimate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%d\n", est.Currency, est.Estimate)
			return nil
		},
	}
}

func centersCmd(a *app) *cobra.Command {
	var city string
	cmd := &cobra.Command{
		Use:   "centers",
		Short: "List nearby collection centers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.api.Centers(cmd.Context(), city)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCITY\tDISTANCE\tTIMINGS\tRATING\tPHONE")
			for _, c := range list {
				fmt.Fprintf(tw, "%s\t%s\t%.1f km\t%s\t%.1f\t%s\n", c.Name, c.City, c.DistanceKm, c.Timings, c.Rating, c.Phone)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&city, "city", "", "Only centers in this city")
	return cmd
}

// --- User commands ---

func companiesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "companies",
		Short: "List companies accepting submissions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireRole(models.RoleUser); err != nil {
				return err
			}
			list, err := a.api.Companies(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME")
			for _, c := range list {
				fmt.Fprintf(tw, "%s\t%s\n", c.ID, c.CompanyName)
			}
			return tw.Flush()
		},
	}
}

func submitCmd(a *app) *cobra.Command {
	var (
		f     client.SubmitForm
		prize int
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Offer an item to a company",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireRole(models.RoleUser); err != nil {
				return err
			}
			if cmd.Flags().Changed("prize") {
				f.Prize = &prize
			}
			if f.IdempotencyKey == "" {
				f.IdempotencyKey = uuid.NewString()
			}
			res, err := a.api.Submit(cmd.Context(), f)
			if res != nil && res.Submission != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted %s: %s%d, %s\n",
					res.Submission.ID, valuation.CurrencySymbol, res.Submission.Prize, res.Submission.Status)
				if res.PointsAwarded > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "+%d eco points\n", res.PointsAwarded)
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&f.ItemName, "name", "", "Item name")
	cmd.Flags().IntVar(&f.Quantity, "quantity", 1, "Number of items")
	cmd.Flags().Float64Var(&f.Weight, "weight", 0, "Weight in kg")
	cmd.Flags().StringVar(&f.CompanyID, "company", "", "Company ID (see 'ewastectl companies')")
	cmd.Flags().StringVar(&f.ImageRef, "image", "", "Image URL")
	cmd.Flags().StringVar(&f.Phone, "phone", "", "Pickup phone number")
	cmd.Flags().StringVar(&f.Address, "address", "", "Pickup address")
	cmd.Flags().IntVar(&prize, "prize", 0, "Override the estimated value")
	cmd.Flags().StringVar(&f.IdempotencyKey, "key", "", "Idempotency key (random when empty)")
	return cmd
}

func historyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List your submissions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireRole(models.RoleUser); err != nil {
				return err
			}
			subs, err := a.api.Submissions(cmd.Context())
			if err != nil {
				return err
			}
			return printSubmissions(cmd.OutOrStdout(), subs)
		},
	}
}

// --- Company commands ---

func requestsCmd(a *app) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List submissions sent to your company",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireRole(models.RoleCompany); err != nil {
				return err
			}
			board := client.NewRequestBoard(a.api, status)
			if err := board.Refresh(cmd.Context()); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "all %d | pending %d | approved %d | rejected %d\n",
				board.Count("all"), board.Count("pending"), board.Count("approved"), board.Count("rejected"))
			return printSubmissions(out, board.Items())
		},
	}
	cmd.Flags().StringVar(&status, "status", "all", "Tab: all, pending, approved or rejected")
	return cmd
}

func decideCmd(a *app, use string, status models.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: fmt.Sprintf("Mark a request %s", status),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireRole(models.RoleCompany); err != nil {
				return err
			}
			board := client.NewRequestBoard(a.api, analytics.FilterAll)
			if err := board.Refresh(cmd.Context()); err != nil {
				return err
			}
			sub, err := board.SetStatus(cmd.Context(), args[0], status)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s is now %s\n", sub.ID, sub.Status)
			fmt.Fprintf(out, "pending %d | approved %d | rejected %d\n",
				board.Count("pending"), board.Count("approved"), board.Count("rejected"))
			return nil
		},
	}
}

func analyticsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Show request statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireRole(models.RoleCompany); err != nil {
				return err
			}
			s, err := a.api.Analytics(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Total:         %d\nPending:       %d\nApproved:      %d\nRejected:      %d\nTotal weight:  %.2f kg\nTotal value:   %s%.0f\nApproval rate: %d%%\n",
				s.Total, s.Pending, s.Approved, s.Rejected, s.TotalWeight, valuation.CurrencySymbol, s.TotalValue, s.ApprovalPercent)
			return nil
		},
	}
}

func profileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit your company profile",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the company profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireRole(models.RoleCompany); err != nil {
				return err
			}
			c, err := a.api.CompanyProfile(cmd.Context())
			if err != nil {
				return err
			}
			printCompany(cmd.OutOrStdout(), c)
			return nil
		},
	}

	var name, phone, certificate string
	edit := &cobra.Command{
		Use:   "edit",
		Short: "Change name, phone or certificate",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireRole(models.RoleCompany); err != nil {
				return err
			}
			var u models.CompanyUpdate
			if cmd.Flags().Changed("name") {
				u.CompanyName = &name
			}
			if cmd.Flags().Changed("phone") {
				u.Phone = &phone
			}
			if cmd.Flags().Changed("certificate") {
				u.Certificate = &certificate
			}
			if u.Empty() {
				return fmt.Errorf("nothing to change; pass --name, --phone or --certificate")
			}
			c, err := a.api.UpdateCompanyProfile(cmd.Context(), u)
			if err != nil {
				return err
			}
			printCompany(cmd.OutOrStdout(), c)
			return nil
		},
	}
	edit.Flags().StringVar(&name, "name", "", "Company name")
	edit.Flags().StringVar(&phone, "phone", "", "Phone")
	edit.Flags().StringVar(&certificate, "certificate", "", "Certificate reference")

	cmd.AddCommand(show, edit)
	return cmd
}

// --- Output ---

func printSubmissions(out io.Writer, subs []models.Submission) error {
	if len(subs) == 0 {
		fmt.Fprintln(out, "No submissions.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tITEM\tQTY\tWEIGHT\tVALUE\tSTATUS\tSUBMITTED")
	for _, s := range subs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f kg\t%s%d\t%s\t%s\n",
			s.ID, s.ItemName, s.Quantity, s.Weight, valuation.CurrencySymbol, s.Prize, s.Status,
			s.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func printCompany(out io.Writer, c *models.CompanyProfile) {
	fmt.Fprintf(out, "Company:     %s\nPhone:       %s\nEmail:       %s\nCertificate: %s\n",
		c.CompanyName, c.Phone, c.Email, c.Certificate)
}

func passwordOrPrompt(cmd *cobra.Command, password string) (string, error) {
	if password != "" {
		return password, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
