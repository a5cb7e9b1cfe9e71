// Package storage keeps listing images in a MongoDB GridFS bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"propertyhub/internal/apperr"
)

// Config holds GridFS settings
type Config struct {
	URI      string
	Database string
	Bucket   string
	// PublicBaseURL is where the API serves /media/{id}
	PublicBaseURL string
}

// GridFS stores and serves images
type GridFS struct {
	client     *mongo.Client
	db         *mongo.Database
	bucketName string
	baseURL    string
}

// File is a stored image opened for reading
type File struct {
	Name   string
	Length int64
	Data   []byte
}

// Connect opens the Mongo connection and the bucket
func Connect(ctx context.Context, cfg Config) (*GridFS, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	name := cfg.Bucket
	if name == "" {
		name = "images"
	}
	s := &GridFS{
		client:     client,
		db:         client.Database(cfg.Database),
		bucketName: name,
		baseURL:    strings.TrimRight(cfg.PublicBaseURL, "/"),
	}
	if _, err := s.bucket(); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to open gridfs bucket: %w", err)
	}
	return s, nil
}

// bucket returns a fresh handle; deadlines are per handle and calls run concurrently
func (s *GridFS) bucket() (*gridfs.Bucket, error) {
	return gridfs.NewBucket(s.db, options.GridFSBucket().SetName(s.bucketName))
}

// Close disconnects from Mongo
func (s *GridFS) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Upload stores data as a new file and returns its public URL
func (s *GridFS) Upload(ctx context.Context, data []byte, name string) (string, error) {
	bucket, err := s.bucket()
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrExternal, err)
	}
	bucket.SetWriteDeadline(deadline(ctx))
	id, err := bucket.UploadFromStream(ObjectName(name), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: upload %s: %v", apperr.ErrExternal, name, err)
	}
	return s.URL(id.Hex()), nil
}

// Delete removes a file given its public URL or bare id
func (s *GridFS) Delete(ctx context.Context, key string) error {
	id, err := primitive.ObjectIDFromHex(KeyFromURL(key))
	if err != nil {
		return fmt.Errorf("%w: invalid image key %q", apperr.ErrValidation, key)
	}
	bucket, err := s.bucket()
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrExternal, err)
	}
	bucket.SetWriteDeadline(deadline(ctx))
	if err := bucket.Delete(id); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil
		}
		return fmt.Errorf("%w: delete %s: %v", apperr.ErrExternal, key, err)
	}
	return nil
}

// Open reads a whole file for serving
func (s *GridFS) Open(ctx context.Context, key string) (*File, error) {
	id, err := primitive.ObjectIDFromHex(KeyFromURL(key))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid image key %q", apperr.ErrNotFound, key)
	}
	bucket, err := s.bucket()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrExternal, err)
	}
	bucket.SetReadDeadline(deadline(ctx))
	stream, err := bucket.OpenDownloadStream(id)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: image %s", apperr.ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: open %s: %v", apperr.ErrExternal, key, err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", apperr.ErrExternal, key, err)
	}
	f := stream.GetFile()
	return &File{Name: f.Name, Length: f.Length, Data: data}, nil
}

// URL builds the public URL of a stored file
func (s *GridFS) URL(id string) string {
	return s.baseURL + "/media/" + id
}

// ObjectName prefixes the client file name with a random id so uploads
// with the same name never collide
func ObjectName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		base = "image"
	}
	return uuid.NewString() + "-" + base
}

// KeyFromURL returns the object id of a public media URL. Bare ids pass
// through unchanged.
func KeyFromURL(key string) string {
	if i := strings.LastIndex(key, "/media/"); i >= 0 {
		key = key[i+len("/media/"):]
	}
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	return key
}

func deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Time{}
}
