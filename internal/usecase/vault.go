package usecase

import (
	"context"
	"log/slog"

	"github.com/choplin/agent-bridge/internal/application"
	"github.com/choplin/agent-bridge/internal/services"
	"github.com/choplin/agent-bridge/internal/syncer"
	"github.com/choplin/agent-bridge/internal/vault"
)

// Vaults manages the registry on behalf of the CLI and MCP tools.
type Vaults struct {
	app    *application.Context
	logger *slog.Logger
}

func NewVaults(app *application.Context) *Vaults {
	return &Vaults{app: app, logger: app.Logger}
}

type AddInput struct {
	Name           string
	Source         string
	Description    string
	Priority       int
	ContentSubpath string
	Disabled       bool
}

func (u *Vaults) Add(_ context.Context, in AddInput) (vault.Vault, error) {
	var opts []vault.AddOption
	if in.ContentSubpath != "" {
		opts = append(opts, vault.WithContentSubpath(in.ContentSubpath))
	}
	if in.Disabled {
		opts = append(opts, vault.Disabled())
	}
	v, err := u.app.Registry.Add(in.Name, in.Source, in.Description, in.Priority, opts...)
	if err != nil {
		return vault.Vault{}, err
	}
	u.logger.Info("vault added", "vault", v.Name, "kind", v.Kind(), "priority", v.Priority)
	return v, nil
}

// Remove unregisters name, purges its cache and forgets its sync history.
func (u *Vaults) Remove(ctx context.Context, name string) error {
	found, err := u.app.Registry.Remove(name)
	if err != nil {
		return err
	}
	if !found {
		return &vault.VaultNotFoundError{Name: name}
	}
	if u.app.Journal != nil {
		if _, err := u.app.Journal.Forget(ctx, name); err != nil {
			u.logger.Warn("failed to forget sync history", "vault", name, "error", err)
		}
	}
	u.logger.Info("vault removed", "vault", name)
	return nil
}

func (u *Vaults) List(ctx context.Context) []services.VaultStatus {
	return u.app.Status.Vaults(ctx)
}

// Sync syncs name, or every enabled vault when name is empty.
func (u *Vaults) Sync(ctx context.Context, name string) map[string]syncer.Result {
	return u.app.Syncer.SyncAll(ctx, name)
}
