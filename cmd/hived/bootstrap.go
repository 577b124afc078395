package main

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"hivecoordinator/internal/breaker"
	"hivecoordinator/internal/dispatch"
	"hivecoordinator/internal/identity"
	"hivecoordinator/internal/intentlock"
	"hivecoordinator/internal/lnrpc"
	"hivecoordinator/internal/logsink"
	"hivecoordinator/internal/membership"
	"hivecoordinator/internal/mgmt"
	"hivecoordinator/internal/relay"
	"hivecoordinator/internal/reputation"
	"hivecoordinator/internal/rpc"
	"hivecoordinator/internal/settlement"
	"hivecoordinator/internal/storage"
	"hivecoordinator/internal/transport"
	"hivecoordinator/pkg/config"
)

var (
	bootOnce sync.Once
	bootErr  error
	node     *rpc.Node
	sink     *logsink.Sink
	sched    *dispatch.Scheduler
	inbound  *dispatch.Inbound
	outbound *transport.Queue
)

// inboundJob carries one raw peer packet into the single-writer-per-peer
// dispatch.Inbound path, plus a channel the submitting CLI command (or
// future transport adapter) blocks on for the dispatched Result.
type inboundJob struct {
	raw    []byte
	now    time.Time
	result chan rpc.Result
}

// bootstrap wires every subsystem into one Node. It runs once behind
// sync.Once from PersistentPreRunE so repeated cobra invocations within
// one process share a single set of managers.
func bootstrap(cmd *cobra.Command, args []string) error {
	bootOnce.Do(func() {
		_ = godotenv.Load()

		cfg, err := config.Load(envName)
		if err != nil {
			bootErr = err
			return
		}

		logger := logrus.StandardLogger()
		if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
			logger.SetLevel(lvl)
		}
		sink = logsink.New(logger, 1024, time.Second)

		store := storage.New()
		members := membership.NewTable(store, 10*time.Minute)
		reputationRegistry := reputation.NewRegistry(store, func(peerID string) bool {
			_, ok, _ := members.Get(peerID)
			return ok
		})
		mgmtStore := mgmt.NewStore(store)
		settlementEngine := settlement.NewEngine(store)
		intents := intentlock.NewTable(selfIDHex)
		dedup := relay.New(relay.DefaultSeenSize, relay.DefaultSeenTTL)
		lnClient := lnrpc.Unconfigured{}
		outbound = transport.NewQueue(transport.Unconfigured{}, breaker.New(), sink, 1024)

		pubkey, _ := hex.DecodeString(selfIDHex)
		var signer identity.Signer
		if cfg.Identity.Mode == config.IdentityRemote {
			br := breaker.New()
			remoteCall := func(ctx context.Context, msg []byte) (string, error) {
				return "", identity.ErrSigningUnavailable
			}
			signer = identity.NewRemoteSigner(remoteCall, br, 5*time.Second)
		} else {
			signer = identity.NewLocalSigner(lnClient, pubkey, 5*time.Second)
		}

		node = &rpc.Node{
			SelfID:      selfIDHex,
			Signer:      signer,
			Store:       store,
			Members:     members,
			Reputation:  reputationRegistry,
			MgmtStore:   mgmtStore,
			Settlement:  settlementEngine,
			Intents:     intents,
			Relay:       dedup,
			LN:          lnClient,
			RateLimiter: mgmt.NewRateLimiter(60, time.Minute),
			Outbound:    outbound,
		}

		sched = dispatch.NewScheduler(context.Background(), periodicTasks()...)

		inbound = dispatch.NewInbound(context.Background(), func(peerID string, msg any) {
			job, ok := msg.(inboundJob)
			if !ok {
				return
			}
			job.result <- node.InjectRawPacket(context.Background(), job.raw, job.now)
		})
	})
	return bootErr
}
