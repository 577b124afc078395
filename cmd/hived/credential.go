package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hivecoordinator/internal/reputation"
)

func credentialCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "credential", Short: "reputation (DID) credential operations"}
	cmd.AddCommand(credentialIssueCmd())
	cmd.AddCommand(credentialRevokeCmd())
	return cmd
}

func credentialIssueCmd() *cobra.Command {
	var subject, domain, outcome, metricsCSV string
	c := &cobra.Command{
		Use:               "issue",
		Short:             "issue a reputation credential for a subject",
		PersistentPreRunE: bootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			cred, err := selfAdminCredential(cmd.Context(), now)
			if err != nil {
				return err
			}
			metrics, err := parseMetrics(metricsCSV)
			if err != nil {
				return err
			}
			res := node.IssueCredential(cmd.Context(), cred, reputation.IssueParams{
				Subject: subject,
				Domain:  reputation.Domain(domain),
				Metrics: metrics,
				Outcome: reputation.Outcome(outcome),
			}, now)
			return printResult(res)
		},
	}
	c.Flags().StringVar(&subject, "subject", "", "subject peer_id/pubkey")
	c.Flags().StringVar(&domain, "domain", string(reputation.DomainHiveNode), "credential domain profile")
	c.Flags().StringVar(&outcome, "outcome", string(reputation.OutcomeNeutral), "renew|revoke|neutral")
	c.Flags().StringVar(&metricsCSV, "metrics", "", "comma-separated name=value metric pairs")
	c.MarkFlagRequired("subject")
	return c
}

func credentialRevokeCmd() *cobra.Command {
	var credentialID, subject, domain, reason string
	c := &cobra.Command{
		Use:               "revoke",
		Short:             "revoke a previously issued reputation credential",
		PersistentPreRunE: bootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			cred, err := selfAdminCredential(cmd.Context(), now)
			if err != nil {
				return err
			}
			creds, err := node.Reputation.ForSubject(subject)
			if err != nil {
				return err
			}
			var target *reputation.Credential
			for _, c := range creds {
				if c.CredentialID == credentialID {
					target = c
					break
				}
			}
			if target == nil {
				return printResult(failNotFound("credential not found"))
			}
			return printResult(node.RevokeCredential(cmd.Context(), cred, target, reason, now))
		},
	}
	c.Flags().StringVar(&credentialID, "credential-id", "", "credential to revoke")
	c.Flags().StringVar(&subject, "subject", "", "credential subject")
	c.Flags().StringVar(&domain, "domain", "", "credential domain (unused, reserved)")
	c.Flags().StringVar(&reason, "reason", "", "revocation reason")
	c.MarkFlagRequired("credential-id")
	c.MarkFlagRequired("subject")
	return c
}

func parseMetrics(csv string) (map[string]float64, error) {
	out := map[string]float64{}
	if strings.TrimSpace(csv) == "" {
		return out, nil
	}
	for _, pair := range strings.Split(csv, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
		if err != nil {
			return nil, err
		}
		out[strings.TrimSpace(kv[0])] = v
	}
	return out, nil
}
