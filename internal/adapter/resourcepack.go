package adapter

import "context"

// NonePacks offers no resource packs.
type NonePacks struct{}

func (NonePacks) Packs(context.Context, Request) ([]ResourcePack, error) {
	return nil, nil
}

// FixedPacks offers a configured pack list to every joining player.
type FixedPacks struct {
	List []ResourcePack
}

func (p *FixedPacks) Packs(context.Context, Request) ([]ResourcePack, error) {
	out := make([]ResourcePack, len(p.List))
	copy(out, p.List)
	return out, nil
}
