package main

import (
	"context"
	"time"

	"hivecoordinator/internal/mgmt"
)

// selfAdminCredential mints (and persists) a locally self-issued
// admin-tier management credential scoped to every schema, so this CLI
// process can authorize its own RPC calls against its own Node. A real
// deployment instead loads an operator-issued credential off disk; this
// stands in for that until the credential-file surface is wired.
func selfAdminCredential(ctx context.Context, now time.Time) (*mgmt.Credential, error) {
	c, err := mgmt.Issue(ctx, node.Signer, node.SelfID, mgmt.IssueParams{
		AgentID:        node.SelfID,
		NodeID:         node.SelfID,
		Tier:           mgmt.TierAdmin,
		AllowedSchemas: []string{"*"},
		ValidFrom:      now,
		ValidUntil:     now.AddDate(1, 0, 0),
	})
	if err != nil {
		return nil, err
	}
	if err := node.MgmtStore.PutCredential(c); err != nil {
		return nil, err
	}
	return c, nil
}
