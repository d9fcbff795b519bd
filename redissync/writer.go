package redissync

import (
	"context"
	"time"

	"github.com/icinga/icinga-redis-sync/configobject"
	"github.com/icinga/icinga-redis-sync/logging"
)

// Writer ties together a Connection, a Keyset and a configobject.System into one running
// synchronizer instance: a full initial dump followed by incremental event routing for the
// lifetime of the process, unless it is standing by behind a Registry.
type Writer struct {
	EnvID       string
	System      configobject.System
	Conn        Connection
	Keyset      Keyset
	Concurrency int
	Logger      *logging.Logger

	Registry *Registry
}

// Run performs the initial full dump, starts the event router, and blocks until ctx is canceled.
// If w.Registry is set, Run first waits for this instance to become responsible before dumping,
// so standby instances never double-dump.
func (w Writer) Run(ctx context.Context) error {
	if w.Registry != nil {
		becameLeader, err := w.Registry.Start(ctx)
		if err != nil {
			return err
		}

		select {
		case <-becameLeader:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	serializer := Serializer{EnvID: w.EnvID}

	dumper := Dumper{
		System:      w.System,
		Conn:        w.Conn,
		Serializer:  serializer,
		Keyset:      w.Keyset,
		Concurrency: w.Concurrency,
		Logger:      w.Logger,
	}

	if err := dumper.UpdateAllConfigObjects(ctx); err != nil {
		if w.Logger != nil {
			w.Logger.Errorw("initial dump failed", "error", err)
		}
	}

	router := EventRouter{
		System:     w.System,
		Conn:       w.Conn,
		Serializer: serializer,
		Keyset:     w.Keyset,
		Logger:     w.Logger,
	}
	router.Start(ctx)

	<-ctx.Done()

	if w.Registry != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return w.Registry.Stop(stopCtx)
	}

	return nil
}
