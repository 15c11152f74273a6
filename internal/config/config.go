package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in the storage section.
const (
	BackendMongo  = "mongo"
	BackendDynamo = "dynamo"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Mongo    MongoConfig    `yaml:"mongo"`
	AWS      AWSConfig      `yaml:"aws"`
	Images   ImageConfig    `yaml:"images"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds the PostgreSQL configuration (users, friendships)
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// StorageConfig selects the photo/comment/message backend
type StorageConfig struct {
	Backend string `yaml:"backend"` // "mongo" or "dynamo"
}

// MongoConfig holds MongoDB configuration (backend "mongo")
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// AWSConfig holds DynamoDB/S3 configuration (backend "dynamo")
type AWSConfig struct {
	Region        string `yaml:"region"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Endpoint      string `yaml:"endpoint"` // custom endpoint for S3-compatible stores
	S3Bucket      string `yaml:"s3_bucket"`
	PhotosTable   string `yaml:"photos_table"`
	CommentsTable string `yaml:"comments_table"`
	MessagesTable string `yaml:"messages_table"`
}

// ImageConfig holds the resize policy for uploaded photos
type ImageConfig struct {
	ThumbWidth int `yaml:"thumb_width"`
	FullWidth  int `yaml:"full_width"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendMongo
	}
	if c.Mongo.URI == "" {
		c.Mongo.URI = "mongodb://localhost:27017"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "lumina"
	}
	if c.AWS.PhotosTable == "" {
		c.AWS.PhotosTable = "lumina_photos"
	}
	if c.AWS.CommentsTable == "" {
		c.AWS.CommentsTable = "lumina_comments"
	}
	if c.AWS.MessagesTable == "" {
		c.AWS.MessagesTable = "lumina_messages"
	}
	if c.Images.ThumbWidth <= 0 {
		c.Images.ThumbWidth = 400
	}
	if c.Images.FullWidth <= 0 {
		c.Images.FullWidth = 1200
	}
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
