package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/libs/config"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/libs/runtime"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/agenda"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/storage"
)

type agendaBackend struct {
	provider agenda.Provider
	ready    *runtime.ReadyCheck
	close    func()
}

// newAgendaBackend selects the scheduling collaborator from AGENDA_BACKEND
// (postgres, rest, grpc or disabled).
func newAgendaBackend(ctx context.Context, store *storage.Store, logger *slog.Logger) (agendaBackend, error) {
	timeout, err := config.Duration("AGENDA_TIMEOUT", 5*time.Second)
	if err != nil {
		return agendaBackend{}, err
	}
	noop := func() {}

	switch backend := strings.ToLower(config.String("AGENDA_BACKEND", "postgres")); backend {
	case "postgres", "":
		return agendaBackend{provider: store.AppointmentRepository, close: noop}, nil
	case "rest":
		baseURL, err := config.RequiredString("AGENDA_URL")
		if err != nil {
			return agendaBackend{}, err
		}
		p, err := agenda.NewRESTProvider(agenda.RESTConfig{
			BaseURL: baseURL,
			Token:   config.String("AGENDA_TOKEN", ""),
			Timeout: timeout,
		})
		if err != nil {
			return agendaBackend{}, err
		}
		return agendaBackend{
			provider: p,
			ready:    &runtime.ReadyCheck{Name: "agenda", Check: p.ReadyCheck(), Optional: true},
			close:    noop,
		}, nil
	case "grpc":
		addr, err := config.RequiredString("AGENDA_GRPC_ADDR")
		if err != nil {
			return agendaBackend{}, err
		}
		p, err := agenda.NewGRPCProvider(ctx, addr, timeout)
		if err != nil {
			return agendaBackend{}, err
		}
		return agendaBackend{
			provider: p,
			ready:    &runtime.ReadyCheck{Name: "agenda", Check: p.ReadyCheck(), Optional: true},
			close: func() {
				if err := p.Close(); err != nil {
					logger.Warn("agenda grpc close failed", "err", err)
				}
			},
		}, nil
	case "disabled":
		logger.Warn("scheduling collaborator disabled; recurrence batches will fail")
		return agendaBackend{provider: agenda.NewDisabledProvider(), close: noop}, nil
	default:
		return agendaBackend{}, fmt.Errorf("unknown AGENDA_BACKEND %q", backend)
	}
}
