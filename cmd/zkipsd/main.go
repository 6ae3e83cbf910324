// Copyright 2025 ZKIPS Chain Contributors
//
// zkipsd is the node daemon: it loads configuration, wires the consensus
// components together behind a single node.Node actor, and serves a
// minimal status API and a Prometheus metrics endpoint.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zkipschain/zkips/pkg/account"
	"github.com/zkipschain/zkips/pkg/config"
	"github.com/zkipschain/zkips/pkg/consensus"
	"github.com/zkipschain/zkips/pkg/field"
	"github.com/zkipschain/zkips/pkg/node"
	"github.com/zkipschain/zkips/pkg/schnorr"
	"github.com/zkipschain/zkips/pkg/state"
	"github.com/zkipschain/zkips/pkg/txn"
	"github.com/zkipschain/zkips/pkg/validator"
	"github.com/zkipschain/zkips/pkg/zkidentity"
)

func main() {
	var (
		validatorID = flag.String("validator-id", "", "validator ID (overrides ZKIPS_VALIDATOR_ID)")
		dev         = flag.Bool("dev", false, "run with relaxed single-node validation instead of full production checks")
	)
	flag.Parse()

	log.Printf("starting zkipsd")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}
	if *validatorID != "" {
		cfg.ValidatorID = *validatorID
	}

	if *dev {
		if err := cfg.ValidateForDevelopment(); err != nil {
			log.Fatalf("configuration: %v", err)
		}
	} else {
		if err := cfg.Validate(); err != nil {
			log.Fatalf("configuration: %v", err)
		}
	}
	log.Printf("validator ID: %s, listen: %s, metrics: %s", cfg.ValidatorID, cfg.ListenAddr, cfg.MetricsAddr)

	storage, err := state.NewLevelDBStorage("zkips", cfg.DataDir)
	if err != nil {
		log.Printf("leveldb unavailable at %s, falling back to in-memory storage (state will not survive a restart): %v", cfg.DataDir, err)
		storage = state.NewMemoryStorage()
	}

	st, err := storage.LoadState()
	if err != nil {
		log.Fatalf("load state: %v", err)
	}
	log.Printf("loaded state at height %d, version %d", st.BlockHeight, st.Version)

	keys, err := loadOrWarnIdentityKeys(cfg.DataDir)
	if err != nil {
		log.Fatalf("load identity keys: %v (run zkips-setup first)", err)
	}

	scheme, err := schnorr.NewScheme(cfg.SecurityLevel, nil)
	if err != nil {
		log.Fatalf("build signature scheme: %v", err)
	}

	selfID := validator.ID(cfg.ValidatorID)
	sk := field.FromBytesLE([]byte(cfg.ValidatorID))
	selfKeyPair := schnorr.KeyPairFromSecret(sk)

	genesisAccount := account.New(account.ID(cfg.ValidatorID), selfKeyPair.PublicKey)
	if st.GetAccount(genesisAccount.ID) == nil {
		st.PutAccount(genesisAccount)
		log.Printf("seeded genesis account for %s", cfg.ValidatorID)
	}

	identityScalar := field.FromBytesLE([]byte(cfg.ValidatorID))
	randomness := field.FromUint64(uint64(len(cfg.ValidatorID)) + 1)
	commitment := identityScalar.Mul(field.FromUint64(2)).Add(randomness.Mul(field.FromUint64(3)))

	validators := validator.NewSet()
	if err := validators.Add(&validator.Validator{
		ID:                 selfID,
		Stake:              cfg.MinStake,
		IdentityCommitment: commitment,
	}, cfg.MaxValidators); err != nil {
		log.Fatalf("seed validator set: %v", err)
	}

	voting := consensus.NewVotingManager(cfg.VoteThreshold)
	voting.UpdateWeights(map[string]uint64{string(selfID): validators.Get(selfID).Stake})

	producer := consensus.NewBlockProducer(cfg.BlockTime)
	identityVerifier := consensus.NewIdentityVerifier(keys, consensus.DefaultMinGap)
	transitioner := txn.NewTransitioner(scheme, nil)

	cs := consensus.NewConsensusState(cfg.EpochLength, uint64(time.Now().Unix()))

	registry := prometheus.NewRegistry()
	metrics := node.NewMetrics(registry)

	n := node.New(cfg, cs, validators, st, voting, producer, identityVerifier, transitioner, metrics)
	log.Printf("node actor run ID: %s", n.RunID)

	ctx, cancel := context.WithCancel(context.Background())
	go n.Run(ctx)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/status", statusHandler(n))
	apiServer := &http.Server{Addr: cfg.ListenAddr, Handler: apiMux}

	go func() {
		log.Printf("metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("metrics server: %v", err)
		}
	}()
	go func() {
		log.Printf("status API listening on %s", cfg.ListenAddr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("status server: %v", err)
		}
	}()

	log.Printf("zkipsd ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down zkipsd")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if finalState, err := n.ReadState(shutdownCtx); err == nil {
		if err := storage.SaveState(finalState); err != nil {
			log.Printf("save state on shutdown: %v", err)
		}
	}
	cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("status server shutdown error: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}

	log.Printf("zkipsd stopped")
}

// loadOrWarnIdentityKeys loads the trusted-setup artifacts zkips-setup
// wrote under dataDir/keys. A missing proving key is tolerated (the node
// can still verify blocks it did not produce); a missing constraint system
// or verifying key is fatal.
func loadOrWarnIdentityKeys(dataDir string) (*zkidentity.Keys, error) {
	keyDir := filepath.Join(dataDir, "keys")
	csPath := filepath.Join(keyDir, "identity.cs")
	vkPath := filepath.Join(keyDir, "identity.vk")
	pkPath := filepath.Join(keyDir, "identity.pk")

	if _, err := os.Stat(pkPath); err != nil {
		log.Printf("no proving key at %s, this node will not be able to produce blocks", pkPath)
		pkPath = ""
	}

	return zkidentity.LoadKeys(csPath, pkPath, vkPath)
}

func statusHandler(n *node.Node) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		st, err := n.ReadState(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"height":  st.BlockHeight,
			"version": st.Version,
			"root":    st.Root.String(),
		})
	}
}
