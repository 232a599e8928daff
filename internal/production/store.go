package production

import "context"

// ProjectStore manages project persistence including collaborator grants.
type ProjectStore interface {
	Create(ctx context.Context, p *Project) error
	FindByID(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context) ([]*Project, error)
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (Stats, error)
}

// ResourceStore manages project-scoped resources keyed by kind and id.
type ResourceStore interface {
	Create(ctx context.Context, r *Resource) error
	FindByID(ctx context.Context, kind, id string) (*Resource, error)
	ListByProject(ctx context.Context, kind, projectID string) ([]*Resource, error)
	Update(ctx context.Context, r *Resource) error
	Delete(ctx context.Context, kind, id string) error
}
