package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strconv"

	"lumina-backend/internal/config"
	"lumina-backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// Key layout (part of the storage contract, stable across releases):
//
//	photos table:   PK=PHOTO#{id}  SK=META         metadata record
//	                PK=USER#{id}   SK=PHOTO#{id}   owner index item
//	comments table: PK=PHOTO#{id}  SK={ts}#{id}    one item per comment
//	messages table: PK=CONV#{a#b}  SK={ts}#{id}    canonical conversation
const metaSortKey = "META"

func photoPK(photoID string) string { return "PHOTO#" + photoID }
func ownerPK(userID int64) string   { return fmt.Sprintf("USER#%d", userID) }
func photoSK(photoID string) string { return "PHOTO#" + photoID }
func convPK(a, b int64) string      { return "CONV#" + conversationKey(a, b) }

// dynamoStore is the key/value table backend: photo metadata plus a
// per-owner index in one DynamoDB table, comments and messages in range
// partitioned tables, blobs as S3 objects under deterministic keys.
type dynamoStore struct {
	*relationalStore
	db            *dynamodb.Client
	blobs         *s3Blobs
	photosTable   string
	commentsTable string
	messagesTable string
	images        config.ImageConfig
}

type photoItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	ID        string `dynamodbav:"id"`
	OwnerID   int64  `dynamodbav:"user_id"`
	Username  string `dynamodbav:"username"`
	Topic     string `dynamodbav:"topic"`
	Caption   string `dynamodbav:"caption"`
	CreatedAt int64  `dynamodbav:"timestamp"`
	Likes     int64  `dynamodbav:"likes"`
	ThumbRef  string `dynamodbav:"thumbnail_ref"`
	FullRef   string `dynamodbav:"full_ref"`
}

// ownerIndexItem enables per-owner range queries without a table scan.
type ownerIndexItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	PhotoID   string `dynamodbav:"photo_id"`
	CreatedAt int64  `dynamodbav:"timestamp"`
}

type commentItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	ID        string `dynamodbav:"comment_id"`
	AuthorID  int64  `dynamodbav:"user_id"`
	Username  string `dynamodbav:"username"`
	Text      string `dynamodbav:"text"`
	CreatedAt int64  `dynamodbav:"timestamp"`
}

type messageItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	ID        string `dynamodbav:"message_id"`
	FromID    int64  `dynamodbav:"from_user_id"`
	FromName  string `dynamodbav:"from_username"`
	ToID      int64  `dynamodbav:"to_user_id"`
	Text      string `dynamodbav:"text"`
	CreatedAt int64  `dynamodbav:"timestamp"`
}

func newDynamoStore(ctx context.Context, cfg *config.Config, rel *relationalStore) (*dynamoStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWS.Region),
	}
	if cfg.AWS.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWS.AccessKey, cfg.AWS.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &dynamoStore{
		relationalStore: rel,
		db:              dynamodb.NewFromConfig(awsCfg),
		blobs:           &s3Blobs{client: s3Client, bucket: cfg.AWS.S3Bucket},
		photosTable:     cfg.AWS.PhotosTable,
		commentsTable:   cfg.AWS.CommentsTable,
		messagesTable:   cfg.AWS.MessagesTable,
		images:          cfg.Images,
	}, nil
}

func (s *dynamoStore) SaveProfilePicture(ctx context.Context, userID int64, img image.Image) (*models.ImageRefs, error) {
	return s.saveProfilePicture(ctx, s.blobs, userID, img)
}

func (s *dynamoStore) GetProfilePicture(ctx context.Context, userID int64, variant string) ([]byte, error) {
	return s.getProfilePicture(ctx, s.blobs, userID, variant)
}

// ListPhotos with owners queries each owner partition, batch-fetches
// the metadata for the union and merge-sorts the result. With no owner
// filter it falls back to a full-table scan restricted to META items,
// a documented cost of this layout.
func (s *dynamoStore) ListPhotos(ctx context.Context, ownerIDs []int64) ([]*models.Photo, error) {
	if ownerIDs == nil {
		return s.scanAllPhotos(ctx)
	}

	var photoIDs []string
	for _, uid := range uniqueInt64(ownerIDs) {
		ids, err := s.ownerPhotoIDs(ctx, uid)
		if err != nil {
			return nil, err
		}
		photoIDs = append(photoIDs, ids...)
	}

	// BatchGetItem rejects requests containing duplicate keys, and a
	// duplicated id would surface the same photo twice in the listing.
	photos, err := s.batchGetPhotos(ctx, uniqueStrings(photoIDs))
	if err != nil {
		return nil, err
	}
	sortPhotosDesc(photos)
	return photos, nil
}

func (s *dynamoStore) scanAllPhotos(ctx context.Context) ([]*models.Photo, error) {
	var photos []*models.Photo
	paginator := dynamodb.NewScanPaginator(s.db, &dynamodb.ScanInput{
		TableName:        aws.String(s.photosTable),
		FilterExpression: aws.String("SK = :meta"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":meta": &ddbtypes.AttributeValueMemberS{Value: metaSortKey},
		},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photos: %w", err)
		}
		var items []photoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal photos: %w", err)
		}
		for i := range items {
			photos = append(photos, items[i].toPhoto())
		}
	}
	sortPhotosDesc(photos)
	return photos, nil
}

func (s *dynamoStore) ownerPhotoIDs(ctx context.Context, userID int64) ([]string, error) {
	var ids []string
	paginator := dynamodb.NewQueryPaginator(s.db, &dynamodb.QueryInput{
		TableName:              aws.String(s.photosTable),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk": &ddbtypes.AttributeValueMemberS{Value: ownerPK(userID)},
		},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query owner photos: %w", err)
		}
		var items []ownerIndexItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal owner index: %w", err)
		}
		for _, it := range items {
			ids = append(ids, it.PhotoID)
		}
	}
	return ids, nil
}

// batchGetPhotos resolves metadata for a set of photo ids, 100 keys per
// BatchGetItem call, retrying unprocessed keys. Ids whose metadata is
// gone (a racing delete) are silently dropped.
func (s *dynamoStore) batchGetPhotos(ctx context.Context, photoIDs []string) ([]*models.Photo, error) {
	photos := make([]*models.Photo, 0, len(photoIDs))
	for start := 0; start < len(photoIDs); start += 100 {
		end := start + 100
		if end > len(photoIDs) {
			end = len(photoIDs)
		}
		keys := make([]map[string]ddbtypes.AttributeValue, 0, end-start)
		for _, id := range photoIDs[start:end] {
			keys = append(keys, s.photoKey(id))
		}

		for len(keys) > 0 {
			out, err := s.db.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: map[string]ddbtypes.KeysAndAttributes{
					s.photosTable: {Keys: keys},
				},
			})
			if err != nil {
				return nil, fmt.Errorf("failed to batch get photos: %w", err)
			}
			var items []photoItem
			if err := attributevalue.UnmarshalListOfMaps(out.Responses[s.photosTable], &items); err != nil {
				return nil, fmt.Errorf("failed to unmarshal photos: %w", err)
			}
			for i := range items {
				photos = append(photos, items[i].toPhoto())
			}
			keys = out.UnprocessedKeys[s.photosTable].Keys
		}
	}
	return photos, nil
}

func (s *dynamoStore) AddPhoto(ctx context.Context, owner *models.User, topic, caption string, img image.Image) (*models.Photo, error) {
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

	item := photoItem{
		PK:        photoPK(photoID),
		SK:        metaSortKey,
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
	if err := s.putItem(ctx, s.photosTable, item); err != nil {
		return nil, fmt.Errorf("failed to put photo metadata: %w", err)
	}

	index := ownerIndexItem{
		PK:        ownerPK(owner.ID),
		SK:        photoSK(photoID),
		PhotoID:   photoID,
		CreatedAt: item.CreatedAt,
	}
	if err := s.putItem(ctx, s.photosTable, index); err != nil {
		return nil, fmt.Errorf("failed to put photo owner index: %w", err)
	}

	return item.toPhoto(), nil
}

func (s *dynamoStore) DeletePhoto(ctx context.Context, photoID string) (*models.Photo, error) {
	photo, err := s.GetPhoto(ctx, photoID)
	if err != nil || photo == nil {
		return nil, err
	}

	for _, ref := range []string{photo.ThumbRef, photo.FullRef} {
		if err := s.blobs.delete(ctx, ref); err != nil {
			log.Warn().Err(err).Str("photo_id", photoID).Str("ref", ref).
				Msg("Failed to delete photo blob")
		}
	}

	if err := s.deleteItem(ctx, s.photosTable, s.photoKey(photoID)); err != nil {
		return nil, fmt.Errorf("failed to delete photo metadata: %w", err)
	}
	if err := s.deleteItem(ctx, s.photosTable, map[string]ddbtypes.AttributeValue{
		"PK": &ddbtypes.AttributeValueMemberS{Value: ownerPK(photo.OwnerID)},
		"SK": &ddbtypes.AttributeValueMemberS{Value: photoSK(photoID)},
	}); err != nil {
		return nil, fmt.Errorf("failed to delete photo owner index: %w", err)
	}

	if err := s.deleteCommentsForPhoto(ctx, photoID); err != nil {
		return nil, err
	}
	return photo, nil
}

func (s *dynamoStore) GetPhoto(ctx context.Context, photoID string) (*models.Photo, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.photosTable),
		Key:       s.photoKey(photoID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var item photoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal photo: %w", err)
	}
	return item.toPhoto(), nil
}

// IncrementLike uses DynamoDB's atomic numeric update, conditioned on
// the metadata record existing so likes never materialize ghost photos.
func (s *dynamoStore) IncrementLike(ctx context.Context, photoID string) (int64, bool, error) {
	out, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.photosTable),
		Key:                 s.photoKey(photoID),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		UpdateExpression:    aws.String("SET #l = if_not_exists(#l, :zero) + :inc"),
		ExpressionAttributeNames: map[string]string{
			"#l": "likes",
		},
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":inc":  &ddbtypes.AttributeValueMemberN{Value: "1"},
			":zero": &ddbtypes.AttributeValueMemberN{Value: "0"},
		},
		ReturnValues: ddbtypes.ReturnValueUpdatedNew,
	})
	if err != nil {
		var cond *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to increment likes: %w", err)
	}

	likesAttr, ok := out.Attributes["likes"].(*ddbtypes.AttributeValueMemberN)
	if !ok {
		return 0, false, fmt.Errorf("unexpected likes attribute in update response")
	}
	likes, err := strconv.ParseInt(likesAttr.Value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("failed to parse likes count: %w", err)
	}
	return likes, true, nil
}

func (s *dynamoStore) GetImageBytes(ctx context.Context, photoID, variant string) ([]byte, error) {
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

// ListComments is a single range query per photo, newest first by
// reversing the scan direction.
func (s *dynamoStore) ListComments(ctx context.Context, photoID string) ([]*models.Comment, error) {
	var comments []*models.Comment
	paginator := dynamodb.NewQueryPaginator(s.db, &dynamodb.QueryInput{
		TableName:              aws.String(s.commentsTable),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk": &ddbtypes.AttributeValueMemberS{Value: photoPK(photoID)},
		},
		ScanIndexForward: aws.Bool(false),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query comments: %w", err)
		}
		var items []commentItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal comments: %w", err)
		}
		for _, it := range items {
			comments = append(comments, it.toComment(photoID))
		}
	}
	return comments, nil
}

func (s *dynamoStore) AddComment(ctx context.Context, photoID string, author *models.User, text string) (*models.Comment, error) {
	item := commentItem{
		PK:        photoPK(photoID),
		ID:        newID(),
		AuthorID:  author.ID,
		Username:  author.Username,
		Text:      text,
		CreatedAt: nowMillis(),
	}
	item.SK = timeSortKey(item.CreatedAt, item.ID)
	if err := s.putItem(ctx, s.commentsTable, item); err != nil {
		return nil, fmt.Errorf("failed to put comment: %w", err)
	}
	return item.toComment(photoID), nil
}

func (s *dynamoStore) deleteCommentsForPhoto(ctx context.Context, photoID string) error {
	paginator := dynamodb.NewQueryPaginator(s.db, &dynamodb.QueryInput{
		TableName:              aws.String(s.commentsTable),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk": &ddbtypes.AttributeValueMemberS{Value: photoPK(photoID)},
		},
		ProjectionExpression: aws.String("PK, SK"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to query comments for deletion: %w", err)
		}
		for _, item := range page.Items {
			if err := s.deleteItem(ctx, s.commentsTable, map[string]ddbtypes.AttributeValue{
				"PK": item["PK"],
				"SK": item["SK"],
			}); err != nil {
				return fmt.Errorf("failed to delete comment: %w", err)
			}
		}
	}
	return nil
}

func (s *dynamoStore) SendMessage(ctx context.Context, sender *models.User, toID int64, text string) (*models.Message, error) {
	item := messageItem{
		PK:        convPK(sender.ID, toID),
		ID:        newID(),
		FromID:    sender.ID,
		FromName:  sender.Username,
		ToID:      toID,
		Text:      text,
		CreatedAt: nowMillis(),
	}
	item.SK = timeSortKey(item.CreatedAt, item.ID)
	if err := s.putItem(ctx, s.messagesTable, item); err != nil {
		return nil, fmt.Errorf("failed to put message: %w", err)
	}
	return item.toMessage(), nil
}

// ListMessages queries the canonical conversation partition newest
// first, capped at 100, then reverses into ascending order. Both
// participants resolve the same partition, so no fan-out is needed.
func (s *dynamoStore) ListMessages(ctx context.Context, userID, otherID int64) ([]*models.Message, error) {
	out, err := s.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.messagesTable),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk": &ddbtypes.AttributeValueMemberS{Value: convPK(userID, otherID)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(messageHistoryLimit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	var items []messageItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
	}
	msgs := make([]*models.Message, 0, len(items))
	for _, it := range items {
		msgs = append(msgs, it.toMessage())
	}
	reverseMessages(msgs)
	return msgs, nil
}

func (s *dynamoStore) Close(ctx context.Context) error {
	return nil
}

func (s *dynamoStore) photoKey(photoID string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"PK": &ddbtypes.AttributeValueMemberS{Value: photoPK(photoID)},
		"SK": &ddbtypes.AttributeValueMemberS{Value: metaSortKey},
	}
}

func (s *dynamoStore) putItem(ctx context.Context, table string, item any) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      av,
	})
	return err
}

func (s *dynamoStore) deleteItem(ctx context.Context, table string, key map[string]ddbtypes.AttributeValue) error {
	_, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(table),
		Key:       key,
	})
	return err
}

func (it *photoItem) toPhoto() *models.Photo {
	return &models.Photo{
		ID:        it.ID,
		OwnerID:   it.OwnerID,
		Username:  it.Username,
		Topic:     it.Topic,
		Caption:   it.Caption,
		CreatedAt: it.CreatedAt,
		Likes:     it.Likes,
		ThumbRef:  it.ThumbRef,
		FullRef:   it.FullRef,
	}
}

func (it *commentItem) toComment(photoID string) *models.Comment {
	return &models.Comment{
		ID:        it.ID,
		PhotoID:   photoID,
		AuthorID:  it.AuthorID,
		Username:  it.Username,
		Text:      it.Text,
		CreatedAt: it.CreatedAt,
	}
}

func (it *messageItem) toMessage() *models.Message {
	return &models.Message{
		ID:        it.ID,
		FromID:    it.FromID,
		FromName:  it.FromName,
		ToID:      it.ToID,
		Text:      it.Text,
		CreatedAt: it.CreatedAt,
	}
}

// s3Blobs stores image variants as objects under deterministic keys.
// Deletion swallows not-found errors; objects may legitimately be gone.
type s3Blobs struct {
	client *s3.Client
	bucket string
}

func (b *s3Blobs) put(ctx context.Context, name string, data []byte) (string, error) {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object: %w", err)
	}
	return name, nil
}

func (b *s3Blobs) get(ctx context.Context, ref string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return data, nil
}

func (b *s3Blobs) delete(ctx context.Context, ref string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
