package hcl

import (
	"context"
	"fmt"

	"github.com/vk/stacgridgo/internal/config"
)

// translate converts one decoded file into the agnostic model.
func (l *Loader) translate(ctx context.Context, root *fileRoot) (*config.Model, error) {
	m := config.New()
	switch len(root.Loads) {
	case 0:
	case 1:
		ld, err := l.translateLoad(ctx, root.Loads[0])
		if err != nil {
			return nil, err
		}
		m.Load = ld
	default:
		return nil, fmt.Errorf("at most one load block is allowed, found %d", len(root.Loads))
	}

	for _, c := range root.Collections {
		col, err := l.translateCollection(ctx, c)
		if err != nil {
			return nil, err
		}
		if err := m.Merge(&config.Model{Collections: map[string]*config.Collection{col.Name: col}}); err != nil {
			return nil, err
		}
	}

	switch len(root.Envs) {
	case 0:
	case 1:
		m.Env = translateEnv(root.Envs[0])
	default:
		return nil, fmt.Errorf("at most one env block is allowed, found %d", len(root.Envs))
	}
	return m, nil
}

func (l *Loader) translateLoad(ctx context.Context, b *loadBlock) (*config.Load, error) {
	res, err := resolution(ctx, b.Resolution)
	if err != nil {
		return nil, fmt.Errorf("load.resolution: %w", err)
	}
	rs, err := resampling(ctx, b.Resampling)
	if err != nil {
		return nil, fmt.Errorf("load.resampling: %w", err)
	}
	fill, err := float(ctx, b.FillValue)
	if err != nil {
		return nil, fmt.Errorf("load.fill_value: %w", err)
	}
	nodata, err := float(ctx, b.Nodata)
	if err != nil {
		return nil, fmt.Errorf("load.nodata: %w", err)
	}
	return &config.Load{
		Scenario:        b.Scenario,
		Method:          b.Method,
		Bands:           b.Bands,
		CRS:             b.CRS,
		Resolution:      res,
		Anchor:          b.Anchor,
		Rotation:        b.Rotation,
		BBox:            b.BBox,
		GroupBy:         b.GroupBy,
		SortWithinGroup: b.SortWithinGroup,
		Resampling:      rs,
		Chunks:          b.Chunks,
		DataType:        b.DataType,
		FillValue:       fill,
		Nodata:          nodata,
		Fuse:            b.Fuse,
		UseOverviews:    b.UseOverviews,
		FailOnError:     b.FailOnError,
		Executor:        b.Executor,
		Workers:         b.Workers,
		PatchURL:        b.PatchURL,
	}, nil
}

func (l *Loader) translateCollection(ctx context.Context, b *collectionBlock) (*config.Collection, error) {
	al, err := aliases(ctx, b.Aliases)
	if err != nil {
		return nil, fmt.Errorf("collection %q: %w", b.Name, err)
	}
	c := &config.Collection{
		Name:       b.Name,
		Assets:     make(map[string]*config.Asset, len(b.Assets)),
		Aliases:    al,
		IgnoreProj: b.IgnoreProj,
		Warnings:   b.Warnings,
		AliasOrder: b.AliasOrder,
	}
	for _, a := range b.Assets {
		if _, dup := c.Assets[a.Name]; dup {
			return nil, fmt.Errorf("collection %q: asset %q defined twice", b.Name, a.Name)
		}
		nd, err := float(ctx, a.Nodata)
		if err != nil {
			return nil, fmt.Errorf("collection %q asset %q nodata: %w", b.Name, a.Name, err)
		}
		c.Assets[a.Name] = &config.Asset{Name: a.Name, DataType: a.DataType, Nodata: nd, Unit: a.Unit}
	}
	return c, nil
}

func translateEnv(b *envBlock) *config.Env {
	return &config.Env{
		AWSRegion:        b.AWSRegion,
		AWSEndpoint:      b.AWSEndpoint,
		AWSNoSignRequest: b.AWSNoSignRequest,
		RequesterPays:    b.RequesterPays,
		BearerToken:      b.BearerToken,
		UserAgent:        b.UserAgent,
		Headers:          b.Headers,
		Timeout:          b.Timeout,
		RetryDelay:       b.RetryDelay,
		MaxRetries:       b.MaxRetries,
	}
}
