package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Store implements port.DocumentStore on Cloud Firestore.
type Store struct {
	client *firestore.Client
}

// NewStore opens a Firestore client from an initialised Firebase app.
func NewStore(ctx context.Context, app *firebase.App) (*Store, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Get(ctx context.Context, path string) (port.Document, error) {
	snap, err := s.client.Doc(path).Get(ctx)
	if err != nil {
		return port.Document{}, mapError(path, err)
	}
	return toDocument(path, snap), nil
}

func (s *Store) Query(ctx context.Context, q port.Query) ([]port.Document, error) {
	snaps, err := s.query(q).Documents(ctx).GetAll()
	if err != nil {
		return nil, mapError(q.Collection, err)
	}
	docs := make([]port.Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, toDocument(q.Collection+"/"+snap.Ref.ID, snap))
	}
	return docs, nil
}

func (s *Store) Set(ctx context.Context, path string, data map[string]any) error {
	_, err := s.client.Doc(path).Set(ctx, convertMap(data))
	return mapError(path, err)
}

func (s *Store) Merge(ctx context.Context, path string, data map[string]any) error {
	_, err := s.client.Doc(path).Set(ctx, convertMap(data), firestore.MergeAll)
	return mapError(path, err)
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	updates := make([]firestore.Update, 0, len(fields))
	for key, value := range fields {
		updates = append(updates, firestore.Update{Path: key, Value: convert(value)})
	}
	_, err := s.client.Doc(path).Update(ctx, updates)
	return mapError(path, err)
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, convertMap(data))
	if err != nil {
		return "", mapError(collection, err)
	}
	return ref.ID, nil
}

func (s *Store) WatchDocument(ctx context.Context, path string, fn port.DocumentListener) (port.Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)
	it := s.client.Doc(path).Snapshots(ctx)

	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if stopped(ctx, err) {
					return
				}
				log.Error().Err(err).Str("path", path).Msg("Document watch failed")
				fn(port.Document{}, mapError(path, err))
				return
			}
			fn(toDocument(path, snap), nil)
		}
	}()
	return port.Unsubscribe(cancel), nil
}

func (s *Store) WatchQuery(ctx context.Context, q port.Query, fn port.QueryListener) (port.Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)
	it := s.query(q).Snapshots(ctx)

	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if stopped(ctx, err) {
					return
				}
				log.Error().Err(err).Str("collection", q.Collection).Msg("Query watch failed")
				fn(nil, mapError(q.Collection, err))
				return
			}
			changes := make([]port.Change, 0, len(snap.Changes))
			for _, ch := range snap.Changes {
				changes = append(changes, port.Change{
					Kind: changeKind(ch.Kind),
					Doc:  toDocument(q.Collection+"/"+ch.Doc.Ref.ID, ch.Doc),
				})
			}
			fn(changes, nil)
		}
	}()
	return port.Unsubscribe(cancel), nil
}

func (s *Store) query(q port.Query) firestore.Query {
	fq := s.client.Collection(q.Collection).Query
	for _, f := range q.Filters {
		fq = fq.Where(f.Field, string(f.Op), f.Value)
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Descending {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.OrderBy, dir)
	}
	return fq
}

func toDocument(path string, snap *firestore.DocumentSnapshot) port.Document {
	doc := port.Document{
		ID:     path[strings.LastIndex(path, "/")+1:],
		Path:   path,
		Exists: snap.Exists(),
	}
	if doc.Exists {
		doc.Data = snap.Data()
	}
	return doc
}

func changeKind(k firestore.DocumentChangeKind) port.ChangeKind {
	switch k {
	case firestore.DocumentAdded:
		return port.ChangeAdded
	case firestore.DocumentRemoved:
		return port.ChangeRemoved
	default:
		return port.ChangeModified
	}
}

// convert swaps store-neutral transforms for their Firestore sentinels.
func convert(v any) any {
	switch x := v.(type) {
	case port.Transform:
		switch x.Kind {
		case port.TransformServerTimestamp:
			return firestore.ServerTimestamp
		case port.TransformDelete:
			return firestore.Delete
		case port.TransformArrayUnion:
			return firestore.ArrayUnion(x.Values...)
		case port.TransformArrayRemove:
			return firestore.ArrayRemove(x.Values...)
		}
		return nil
	case map[string]any:
		return convertMap(x)
	default:
		return v
	}
}

func convertMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = convert(v)
	}
	return out
}

func stopped(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled
}

func mapError(path string, err error) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s: %w", path, domain.ErrNotFound)
	}
	return fmt.Errorf("firestore %s: %w", path, err)
}
