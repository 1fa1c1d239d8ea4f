package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // registered for image.Decode
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/config"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/email"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/models"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/services"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/storage"
)

// Task types.
const (
	TypeEmailNotify  = "email:notify"
	TypeImageProcess = "image:process"
)

// Notification events.
const (
	EventBuyRequest    = "buy_request"
	EventSaleConfirmed = "sale_confirmed"
	EventSaleRejected  = "sale_rejected"
)

// NotifyPayload is the email notification task body. It snapshots the
// listing fields the email needs so the handler does not depend on the
// listing still being in the state that triggered the event.
type NotifyPayload struct {
	Event     string  `json:"event"`
	ListingID string  `json:"listing_id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	SellerID  string  `json:"seller_id"`
	BuyerID   string  `json:"buyer_id,omitempty"`
	BuyerName string  `json:"buyer_name,omitempty"`
}

// ImagePayload is the image normalization task body.
type ImagePayload struct {
	S3Key string `json:"s3_key"`
}

// NewClient creates an asynq client over the shared Redis connection.
func NewClient(rdb *redis.Client) *asynq.Client {
	opts := rdb.Options()
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// TaskNotifier queues lifecycle notification emails. It satisfies the
// listing service's Notifier interface without the listing service knowing
// about asynq.
type TaskNotifier struct {
	client *asynq.Client
}

// NewTaskNotifier creates a new TaskNotifier.
func NewTaskNotifier(client *asynq.Client) *TaskNotifier {
	return &TaskNotifier{client: client}
}

func (n *TaskNotifier) enqueue(ctx context.Context, payload NotifyPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notify payload: %w", err)
	}
	_, err = n.client.EnqueueContext(ctx, asynq.NewTask(TypeEmailNotify, data), asynq.Queue("default"))
	if err != nil {
		return fmt.Errorf("failed to enqueue %s notification: %w", payload.Event, err)
	}
	return nil
}

func (n *TaskNotifier) NotifyBuyRequest(ctx context.Context, listing *models.Listing) error {
	payload := NotifyPayload{
		Event:     EventBuyRequest,
		ListingID: listing.ID.Hex(),
		Title:     listing.Title,
		Price:     listing.Price,
		SellerID:  listing.SellerID.Hex(),
		BuyerName: listing.BuyerName,
	}
	if listing.BuyerID != nil {
		payload.BuyerID = listing.BuyerID.Hex()
	}
	return n.enqueue(ctx, payload)
}

func (n *TaskNotifier) NotifySaleConfirmed(ctx context.Context, listing *models.Listing) error {
	payload := NotifyPayload{
		Event:     EventSaleConfirmed,
		ListingID: listing.ID.Hex(),
		Title:     listing.Title,
		Price:     listing.Price,
		SellerID:  listing.SellerID.Hex(),
		BuyerName: listing.BuyerName,
	}
	if listing.BuyerID != nil {
		payload.BuyerID = listing.BuyerID.Hex()
	}
	return n.enqueue(ctx, payload)
}

func (n *TaskNotifier) NotifySaleRejected(ctx context.Context, listing *models.Listing, buyerID primitive.ObjectID, buyerName string) error {
	return n.enqueue(ctx, NotifyPayload{
		Event:     EventSaleRejected,
		ListingID: listing.ID.Hex(),
		Title:     listing.Title,
		Price:     listing.Price,
		SellerID:  listing.SellerID.Hex(),
		BuyerID:   buyerID.Hex(),
		BuyerName: buyerName,
	})
}

// EnqueueImageProcess queues a downscale pass for an uploaded image.
func EnqueueImageProcess(ctx context.Context, client *asynq.Client, s3Key string) error {
	data, err := json.Marshal(ImagePayload{S3Key: s3Key})
	if err != nil {
		return fmt.Errorf("failed to marshal image payload: %w", err)
	}
	_, err = client.EnqueueContext(ctx, asynq.NewTask(TypeImageProcess, data), asynq.Queue("images"))
	if err != nil {
		return fmt.Errorf("failed to enqueue image task for %s: %w", s3Key, err)
	}
	return nil
}

// TaskProcessor holds the dependencies the task handlers need.
type TaskProcessor struct {
	cfg         *config.Config
	emailSender email.Sender
	storage     storage.IStorage
	users       services.IUserService
}

// NewTaskProcessor creates a new TaskProcessor.
func NewTaskProcessor(cfg *config.Config, emailSender email.Sender, store storage.IStorage, users services.IUserService) *TaskProcessor {
	return &TaskProcessor{
		cfg:         cfg,
		emailSender: emailSender,
		storage:     store,
		users:       users,
	}
}

// SetupServer configures the asynq server and mux for the requested worker
// modes. The caller runs the returned server; nil is returned when no
// worker mode is requested.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	if !isBgWorker && !isImageWorker {
		return nil, nil
	}

	opts := rdb.Options()
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: opts.Addr, Password: opts.Password, DB: opts.DB},
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
				"images":   5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	if isBgWorker {
		mux.HandleFunc(TypeEmailNotify, processor.HandleEmailNotifyTask)
		log.Println("Registered notification task handlers.")
	}
	if isImageWorker {
		mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
		log.Println("Registered image processing task handlers.")
	}
	return srv, mux
}

// notifyContent returns the recipient user ID, subject and body for an
// event. The subject wording is load-bearing for the Redis mock sender's
// key classification.
func notifyContent(payload NotifyPayload) (recipientHex, subject, body string, err error) {
	switch payload.Event {
	case EventBuyRequest:
		return payload.SellerID,
			fmt.Sprintf("%s wants to buy \"%s\"", payload.BuyerName, payload.Title),
			fmt.Sprintf("%s has requested to buy your listing \"%s\" for Rs.%.0f.\r\nOpen the app to confirm or decline the sale.",
				payload.BuyerName, payload.Title, payload.Price),
			nil
	case EventSaleConfirmed:
		return payload.BuyerID,
			fmt.Sprintf("Sale confirmed: \"%s\"", payload.Title),
			fmt.Sprintf("The seller has confirmed your purchase of \"%s\" for Rs.%.0f.\r\nArrange the handover with them directly.",
				payload.Title, payload.Price),
			nil
	case EventSaleRejected:
		return payload.BuyerID,
			fmt.Sprintf("Request declined: \"%s\"", payload.Title),
			fmt.Sprintf("The seller has declined your request to buy \"%s\". The listing is available again.",
				payload.Title),
			nil
	}
	return "", "", "", fmt.Errorf("unknown notification event %q", payload.Event)
}

// HandleEmailNotifyTask delivers a lifecycle notification email. A
// recipient without an email address is skipped, not retried.
func (p *TaskProcessor) HandleEmailNotifyTask(ctx context.Context, t *asynq.Task) error {
	var payload NotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal notify payload: %v: %w", err, asynq.SkipRetry)
	}

	recipientHex, subject, body, err := notifyContent(payload)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	recipientID, err := primitive.ObjectIDFromHex(recipientHex)
	if err != nil {
		return fmt.Errorf("invalid recipient ID %q: %w", recipientHex, asynq.SkipRetry)
	}

	recipient, err := p.users.FindByID(ctx, recipientID)
	if err != nil {
		var notFound *models.NotFoundError
		if errors.As(err, &notFound) {
			log.Printf("Notification recipient %s no longer exists, skipping.", recipientHex)
			return nil
		}
		return err
	}
	if recipient.Email == "" {
		log.Printf("User %s has no email address, skipping %s notification.", recipientHex, payload.Event)
		return nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", recipient.Email))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", p.cfg.SmtpFromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	sb.WriteString("\r\n")

	if err = p.emailSender.Send(ctx, []string{recipient.Email}, subject, []byte(sb.String())); err != nil {
		log.Printf("Notification email to %s failed: %v", recipient.Email, err)
		return err
	}
	log.Printf("Sent %s notification for listing %s to %s", payload.Event, payload.ListingID, recipient.Email)
	return nil
}

// HandleImageProcessTask downscales an uploaded image in place. The public
// URL stays stable because the object is overwritten under its own key.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImagePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image payload: %v: %w", err, asynq.SkipRetry)
	}

	imgData, _, err := p.storage.GetObject(ctx, payload.S3Key)
	if err != nil {
		return fmt.Errorf("failed to download image %s: %w", payload.S3Key, err)
	}

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if int64(len(imgData)) > maxSizeBytes {
		log.Printf("Image %s exceeds max size (%d > %d bytes), skipping.", payload.S3Key, len(imgData), maxSizeBytes)
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		return fmt.Errorf("unsupported or corrupt image %s: %v: %w", payload.S3Key, err, asynq.SkipRetry)
	}

	maxDim := uint(p.cfg.ImageMaxDimension)
	if uint(img.Bounds().Dx()) <= maxDim && uint(img.Bounds().Dy()) <= maxDim {
		log.Printf("Image %s (%s, %dx%d) within bounds, nothing to do.",
			payload.S3Key, format, img.Bounds().Dx(), img.Bounds().Dy())
		return nil
	}

	resized := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
	var buf bytes.Buffer
	if err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return fmt.Errorf("failed to re-encode resized image %s: %w", payload.S3Key, err)
	}

	if err = p.storage.PutObject(ctx, payload.S3Key, "image/jpeg", buf.Bytes()); err != nil {
		return fmt.Errorf("failed to upload processed image %s: %w", payload.S3Key, err)
	}
	log.Printf("Resized image %s from %dx%d to %dx%d",
		payload.S3Key, img.Bounds().Dx(), img.Bounds().Dy(), resized.Bounds().Dx(), resized.Bounds().Dy())
	return nil
}
