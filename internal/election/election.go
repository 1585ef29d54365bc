package election

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/customeros/mailnotify/config"
	"github.com/customeros/mailnotify/internal/logger"
)

const (
	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second
)

// Elector keeps at most one replica polling the mailbox. Two pollers would each
// notify every new mail.
type Elector struct {
	cfg      *config.LeaderElectionConfig
	log      logger.Logger
	k8s      kubernetes.Interface
	identity string
}

// NewKubernetesClient builds a client from the pod's service account.
func NewKubernetesClient() (kubernetes.Interface, error) {
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load in-cluster config")
	}
	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kubernetes client")
	}
	return clientset, nil
}

func NewElector(cfg *config.LeaderElectionConfig, log logger.Logger, k8s kubernetes.Interface, identity string) *Elector {
	if identity == "" {
		identity = uuid.NewString()
	}
	return &Elector{
		cfg:      cfg,
		log:      log,
		k8s:      k8s,
		identity: identity,
	}
}

func (e *Elector) Identity() string {
	return e.identity
}

// Run calls fn while this process holds the lease and rejoins the election
// whenever the lease is lost. Without a kubernetes client fn runs directly.
// Run returns once ctx is done and fn has returned.
func (e *Elector) Run(ctx context.Context, fn func(ctx context.Context)) error {
	if e.k8s == nil || !e.cfg.Enabled {
		e.log.Info("Leader election disabled, running in local mode")
		fn(ctx)
		return nil
	}

	for {
		if err := e.runOnce(ctx, fn); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		e.log.Warnf("Lease %s lost, rejoining leader election", e.cfg.LeaseName)
	}
}

func (e *Elector) runOnce(ctx context.Context, fn func(ctx context.Context)) error {
	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      e.cfg.LeaseName,
			Namespace: e.cfg.Namespace,
		},
		Client: e.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: e.identity,
		},
	}

	// fn runs on this goroutine, never on the callback goroutine, so it cannot
	// outlive runOnce
	leading := make(chan context.Context, 1)
	le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
		Lock:            lock,
		Name:            e.cfg.LeaseName,
		ReleaseOnCancel: true,
		LeaseDuration:   LeaseDuration,
		RenewDeadline:   RenewDeadline,
		RetryPeriod:     RetryPeriod,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(leaderCtx context.Context) {
				leading <- leaderCtx
			},
			OnStoppedLeading: func() {
				e.log.Infof("Stopped leading lease %s", e.cfg.LeaseName)
			},
			OnNewLeader: func(identity string) {
				if identity != e.identity {
					e.log.Infof("New leader elected: %s", identity)
				}
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create leader elector")
	}

	electionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	electionDone := make(chan struct{})
	go func() {
		defer close(electionDone)
		le.Run(electionCtx)
	}()

	select {
	case leaderCtx := <-leading:
		e.log.Infof("Acquired lease %s as %s", e.cfg.LeaseName, e.identity)
		fn(leaderCtx)
		// releases the lease if fn returned while still leading
		cancel()
		<-electionDone
	case <-electionDone:
		// lost before the leading callback was scheduled
	}
	return nil
}
