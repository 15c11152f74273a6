package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	"lumina-backend/internal/config"
	"lumina-backend/internal/models"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoStore is the document backend: photos, comments and messages in
// three collections, image blobs in GridFS.
type mongoStore struct {
	*relationalStore
	client   *mongo.Client
	photos   *mongo.Collection
	comments *mongo.Collection
	messages *mongo.Collection
	blobs    *gridfsBlobs
	images   config.ImageConfig
}

func newMongoStore(ctx context.Context, cfg *config.Config, rel *relationalStore) (*mongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(cfg.Mongo.Database)
	bucket, err := gridfs.NewBucket(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create gridfs bucket: %w", err)
	}

	s := &mongoStore{
		relationalStore: rel,
		client:          client,
		photos:          db.Collection("photos"),
		comments:        db.Collection("comments"),
		messages:        db.Collection("messages"),
		blobs:           &gridfsBlobs{bucket: bucket},
		images:          cfg.Images,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *mongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.photos.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "topic", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create photo indexes: %w", err)
	}
	_, err = s.comments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "photo_id", Value: 1}}},
		{Keys: bson.D{{Key: "timestamp", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create comment indexes: %w", err)
	}
	_, err = s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "from_user_id", Value: 1},
			{Key: "to_user_id", Value: 1},
			{Key: "timestamp", Value: -1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create message index: %w", err)
	}
	return nil
}

func (s *mongoStore) SaveProfilePicture(ctx context.Context, userID int64, img image.Image) (*models.ImageRefs, error) {
	return s.saveProfilePicture(ctx, s.blobs, userID, img)
}

func (s *mongoStore) GetProfilePicture(ctx context.Context, userID int64, variant string) ([]byte, error) {
	return s.getProfilePicture(ctx, s.blobs, userID, variant)
}

// ListPhotos issues a single filtered query when owners are given; with
// no filter it walks the whole collection, acceptable at current scale.
func (s *mongoStore) ListPhotos(ctx context.Context, ownerIDs []int64) ([]*models.Photo, error) {
	filter := bson.M{}
	if ownerIDs != nil {
		filter["user_id"] = bson.M{"$in": ownerIDs}
	}
	cursor, err := s.photos.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "id", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer cursor.Close(ctx)

	var photos []*models.Photo
	if err := cursor.All(ctx, &photos); err != nil {
		return nil, fmt.Errorf("failed to decode photos: %w", err)
	}
	return photos, nil
}

// AddPhoto writes both blob variants before the metadata record, so a
// stored record never references a blob that was not written.
func (s *mongoStore) AddPhoto(ctx context.Context, owner *models.User, topic, caption string, img image.Image) (*models.Photo, error) {
	photoID := newID()

	thumbBytes, err := renderVariant(img, s.images.ThumbWidth)
	if err != nil {
		return nil, err
	}
	fullBytes, err := renderVariant(img, s.images.FullWidth)
	if err != nil {
		return nil, err
	}

	thumbRef, err := s.blobs.put(ctx, photoBlobName(photoID, models.VariantThumb), thumbBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to store thumbnail: %w", err)
	}
	fullRef, err := s.blobs.put(ctx, photoBlobName(photoID, models.VariantFull), fullBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to store full image: %w", err)
	}

	photo := &models.Photo{
		ID:        photoID,
		OwnerID:   owner.ID,
		Username:  owner.Username,
		Topic:     topic,
		Caption:   caption,
		CreatedAt: nowMillis(),
		Likes:     0,
		ThumbRef:  thumbRef,
		FullRef:   fullRef,
	}
	if _, err := s.photos.InsertOne(ctx, photo); err != nil {
		return nil, fmt.Errorf("failed to insert photo: %w", err)
	}
	return photo, nil
}

// DeletePhoto removes the metadata record, best-effort deletes both
// blobs and cascades to the photo's comments. Returns (nil, nil) when
// the photo does not exist.
func (s *mongoStore) DeletePhoto(ctx context.Context, photoID string) (*models.Photo, error) {
	photo, err := s.GetPhoto(ctx, photoID)
	if err != nil || photo == nil {
		return nil, err
	}

	if _, err := s.photos.DeleteOne(ctx, bson.M{"id": photoID}); err != nil {
		return nil, fmt.Errorf("failed to delete photo: %w", err)
	}

	for _, ref := range []string{photo.ThumbRef, photo.FullRef} {
		if err := s.blobs.delete(ctx, ref); err != nil {
			log.Warn().Err(err).Str("photo_id", photoID).Str("ref", ref).
				Msg("Failed to delete photo blob")
		}
	}

	if _, err := s.comments.DeleteMany(ctx, bson.M{"photo_id": photoID}); err != nil {
		return nil, fmt.Errorf("failed to delete photo comments: %w", err)
	}
	return photo, nil
}

func (s *mongoStore) GetPhoto(ctx context.Context, photoID string) (*models.Photo, error) {
	var photo models.Photo
	err := s.photos.FindOne(ctx, bson.M{"id": photoID}).Decode(&photo)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}
	return &photo, nil
}

// IncrementLike relies on $inc so concurrent likers never lose updates.
func (s *mongoStore) IncrementLike(ctx context.Context, photoID string) (int64, bool, error) {
	var photo models.Photo
	err := s.photos.FindOneAndUpdate(ctx,
		bson.M{"id": photoID},
		bson.M{"$inc": bson.M{"likes": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&photo)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to increment likes: %w", err)
	}
	return photo.Likes, true, nil
}

func (s *mongoStore) GetImageBytes(ctx context.Context, photoID, variant string) ([]byte, error) {
	photo, err := s.GetPhoto(ctx, photoID)
	if err != nil || photo == nil {
		return nil, err
	}
	ref := photo.FullRef
	if variant == models.VariantThumb {
		ref = photo.ThumbRef
	}
	return s.blobs.get(ctx, ref)
}

func (s *mongoStore) ListComments(ctx context.Context, photoID string) ([]*models.Comment, error) {
	cursor, err := s.comments.Find(ctx, bson.M{"photo_id": photoID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "id", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer cursor.Close(ctx)

	var comments []*models.Comment
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, fmt.Errorf("failed to decode comments: %w", err)
	}
	return comments, nil
}

func (s *mongoStore) AddComment(ctx context.Context, photoID string, author *models.User, text string) (*models.Comment, error) {
	comment := &models.Comment{
		ID:        newID(),
		PhotoID:   photoID,
		AuthorID:  author.ID,
		Username:  author.Username,
		Text:      text,
		CreatedAt: nowMillis(),
	}
	if _, err := s.comments.InsertOne(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to insert comment: %w", err)
	}
	return comment, nil
}

func (s *mongoStore) SendMessage(ctx context.Context, sender *models.User, toID int64, text string) (*models.Message, error) {
	msg := &models.Message{
		ID:        newID(),
		FromID:    sender.ID,
		FromName:  sender.Username,
		ToID:      toID,
		Text:      text,
		CreatedAt: nowMillis(),
	}
	if _, err := s.messages.InsertOne(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}

// ListMessages fetches the newest 100 descending, then reverses, so the
// result is the 100 most recent messages in ascending order.
func (s *mongoStore) ListMessages(ctx context.Context, userID, otherID int64) ([]*models.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"from_user_id": userID, "to_user_id": otherID},
		bson.M{"from_user_id": otherID, "to_user_id": userID},
	}}
	cursor, err := s.messages.Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "id", Value: -1}}).
			SetLimit(messageHistoryLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer cursor.Close(ctx)

	var msgs []*models.Message
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	reverseMessages(msgs)
	return msgs, nil
}

func (s *mongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// gridfsBlobs stores image variants as GridFS files addressed by their
// generated object id.
type gridfsBlobs struct {
	bucket *gridfs.Bucket
}

func (b *gridfsBlobs) put(ctx context.Context, name string, data []byte) (string, error) {
	id, err := b.bucket.UploadFromStream(name, bytes.NewReader(data),
		options.GridFSUpload().SetMetadata(bson.M{"contentType": "image/jpeg"}))
	if err != nil {
		return "", fmt.Errorf("failed to upload blob: %w", err)
	}
	return id.Hex(), nil
}

func (b *gridfsBlobs) get(ctx context.Context, ref string) ([]byte, error) {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if _, err := b.bucket.DownloadToStream(id, &buf); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to download blob: %w", err)
	}
	return buf.Bytes(), nil
}

func (b *gridfsBlobs) delete(ctx context.Context, ref string) error {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return nil
	}
	if err := b.bucket.Delete(id); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}
