package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/user/cognitive/internal/integration"
	"github.com/user/cognitive/internal/platform"
)

// Platform is the part of the platform API a deploy needs.
type Platform interface {
	GetIntegrationByName(ctx context.Context, name, version string) (*platform.Integration, error)
	CreateIntegration(ctx context.Context, body any) (*platform.Integration, error)
	UpdateIntegration(ctx context.Context, id string, body any) (*platform.Integration, error)
}

// Plan is what a deploy would send.
type Plan struct {
	Create   *CreateIntegrationBody
	Update   *UpdateIntegrationBody
	RemoteID string
}

// Body returns the request body of the plan.
func (p *Plan) Body() any {
	if p.Update != nil {
		return p.Update
	}
	return p.Create
}

type Deployer struct {
	platform Platform
}

func NewDeployer(p Platform) *Deployer {
	return &Deployer{platform: p}
}

// Plan builds the create body and, when the platform already holds this
// name and version, the update body against it.
func (d *Deployer) Plan(ctx context.Context, def *integration.IntegrationDefinition) (*Plan, error) {
	create, err := PrepareCreateIntegrationBody(def)
	if err != nil {
		return nil, fmt.Errorf("preparing %s@%s: %w", def.Name, def.Version, err)
	}

	remote, err := d.platform.GetIntegrationByName(ctx, def.Name, def.Version)
	if errors.Is(err, platform.ErrNotFound) {
		return &Plan{Create: create}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching %s@%s: %w", def.Name, def.Version, err)
	}

	return &Plan{
		Create:   create,
		Update:   PrepareUpdateIntegrationBody(create, remote),
		RemoteID: remote.ID,
	}, nil
}

// Deploy creates the integration, or updates it in place if it exists.
func (d *Deployer) Deploy(ctx context.Context, def *integration.IntegrationDefinition) (*platform.Integration, error) {
	plan, err := d.Plan(ctx, def)
	if err != nil {
		return nil, err
	}

	if plan.Update == nil {
		slog.Info("creating integration", "name", def.Name, "version", def.Version)
		created, err := d.platform.CreateIntegration(ctx, plan.Create)
		if err != nil {
			return nil, fmt.Errorf("creating %s@%s: %w", def.Name, def.Version, err)
		}
		return created, nil
	}

	slog.Info("updating integration", "name", def.Name, "version", def.Version, "id", plan.RemoteID)
	updated, err := d.platform.UpdateIntegration(ctx, plan.RemoteID, plan.Update)
	if err != nil {
		return nil, fmt.Errorf("updating %s@%s: %w", def.Name, def.Version, err)
	}
	return updated, nil
}
