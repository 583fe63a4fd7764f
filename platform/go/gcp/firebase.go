// Package gcp builds the Google Cloud clients shared by the API and CLI.
package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// Config selects credentials. An empty CredentialsFile falls back to
// application default credentials.
type Config struct {
	CredentialsFile string `env:"FIREBASE_CONFIG"`
	ProjectID       string `env:"GCLOUD_PROJECT"`
}

func (c Config) options() []option.ClientOption {
	if c.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(c.CredentialsFile)}
}

// GetApp creates a Firebase App instance.
func GetApp(ctx context.Context, cfg Config) (*firebase.App, error) {
	var appCfg *firebase.Config
	if cfg.ProjectID != "" {
		appCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}
	return firebase.NewApp(ctx, appCfg, cfg.options()...)
}

// InitFirebaseAuth initializes the Firebase App and returns an Auth client.
func InitFirebaseAuth(ctx context.Context, cfg Config) (*firebaseauth.Client, error) {
	firebaseApp, err := GetApp(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app [%w]", err)
	}

	fbAuth, err := firebaseApp.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase auth [%w]", err)
	}
	return fbAuth, nil
}

// NewStorageClient returns a GCS client using the same credentials.
func NewStorageClient(ctx context.Context, cfg Config) (*storage.Client, error) {
	client, err := storage.NewClient(ctx, cfg.options()...)
	if err != nil {
		return nil, fmt.Errorf("error initializing storage client [%w]", err)
	}
	return client, nil
}
