package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Full(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9000
database:
  host: db
  port: 5432
  user: app
  password: secret
  dbname: lumina
  sslmode: disable
storage:
  backend: dynamo
aws:
  region: eu-west-1
  s3_bucket: pics
images:
  thumb_width: 300
  full_width: 900
jwt:
  secret: s3cr3t
log:
  level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, BackendDynamo, cfg.Storage.Backend)
	assert.Equal(t, "pics", cfg.AWS.S3Bucket)
	assert.Equal(t, 300, cfg.Images.ThumbWidth)
	assert.Equal(t, 900, cfg.Images.FullWidth)
	assert.Equal(t, "host=db port=5432 user=app password=secret dbname=lumina sslmode=disable",
		cfg.Database.DSN())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 8080
`))
	require.NoError(t, err)

	assert.Equal(t, BackendMongo, cfg.Storage.Backend)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "lumina", cfg.Mongo.Database)
	assert.Equal(t, "lumina_photos", cfg.AWS.PhotosTable)
	assert.Equal(t, 400, cfg.Images.ThumbWidth)
	assert.Equal(t, 1200, cfg.Images.FullWidth)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_Malformed(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [not a mapping"))
	assert.Error(t, err)
}
