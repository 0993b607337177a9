package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"categorybot/internal/models"
	"categorybot/internal/services"

	"go.uber.org/zap"
)

// MaxUploadBytes caps the size of an uploaded workbook
const MaxUploadBytes = 20 << 20

// FileFetcher downloads a document the user attached to a message
type FileFetcher interface {
	FetchFile(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// Message is one inbound chat message. Interactive is set by transports
// that can send documents back; only those may run /download and /upload.
type Message struct {
	ChatID      int64
	Token       string
	Args        []string
	Interactive bool
	Document    *InboundDocument
}

// InboundDocument identifies an attachment carried by a message
type InboundDocument struct {
	FileID   string
	FileName string
	Size     int64
}

// NewMessage splits text into the command token and its arguments
func NewMessage(chatID int64, text string) Message {
	token, args := SplitText(text)
	return Message{ChatID: chatID, Token: token, Args: args}
}

// Reply is the result of handling a message. Document, when set, is sent
// before Text.
type Reply struct {
	Text     string
	Document *Document
}

// Document is an outbound file attachment
type Document struct {
	FileName    string
	ContentType string
	Caption     string
	Data        []byte
}

// Router dispatches commands to the category service
type Router struct {
	categories services.CategoryService
	files      FileFetcher
	logger     *zap.Logger
}

// NewRouter builds a router. files may be nil when the transport cannot
// deliver attachments.
func NewRouter(categories services.CategoryService, files FileFetcher, logger *zap.Logger) *Router {
	return &Router{
		categories: categories,
		files:      files,
		logger:     logger,
	}
}

// Handle runs one command and always produces a reply. Failures are logged
// and turned into generic text; they are never returned or raised.
func (r *Router) Handle(ctx context.Context, msg Message) (reply Reply) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("command handler panicked",
				zap.Int64("chat_id", msg.ChatID),
				zap.String("command", msg.Token),
				zap.Any("panic", rec))
			reply = Reply{Text: msgInternalFailure}
		}
	}()

	cmd, err := Parse(msg.Token, msg.Args)
	if err != nil {
		var usage *UsageError
		if errors.As(err, &usage) {
			r.logger.Debug("command usage error", zap.Int64("chat_id", msg.ChatID), zap.String("command", usage.Token))
			return Reply{Text: usage.Usage}
		}
		return Reply{Text: msgInternalFailure}
	}

	logger := r.logger.With(zap.Int64("chat_id", msg.ChatID), zap.Stringer("command", cmd.Kind))

	switch cmd.Kind {
	case KindViewTree:
		return r.viewTree(ctx, logger)
	case KindAddRoot:
		return r.addRoot(ctx, logger, cmd.Name)
	case KindAddChild:
		return r.addChild(ctx, logger, cmd.Parent, cmd.Name)
	case KindRemove:
		return r.remove(ctx, logger, cmd.Name)
	case KindHelp:
		return Reply{Text: msgHelp}
	case KindDownload:
		if !msg.Interactive {
			return Reply{Text: msgDownloadNeedsChat}
		}
		return r.download(ctx, logger)
	case KindUpload:
		return r.upload(ctx, logger, msg)
	default:
		return Reply{Text: msgUnknownCommand}
	}
}

func (r *Router) viewTree(ctx context.Context, logger *zap.Logger) Reply {
	text, err := r.categories.ViewTree(ctx)
	if err != nil {
		return r.failure(logger, err)
	}
	if text == "" {
		return Reply{Text: msgEmptyTree}
	}
	return Reply{Text: msgTreeHeader + text}
}

func (r *Router) addRoot(ctx context.Context, logger *zap.Logger, name string) Reply {
	if _, err := r.categories.AddRoot(ctx, name); err != nil {
		return r.failure(logger, err)
	}
	return Reply{Text: fmt.Sprintf(msgRootAdded, name)}
}

func (r *Router) addChild(ctx context.Context, logger *zap.Logger, parent, name string) Reply {
	added, err := r.categories.AddChild(ctx, parent, name)
	if err != nil {
		return r.failure(logger, err)
	}
	if !added {
		logger.Debug("parent not found", zap.String("parent", parent))
		return Reply{Text: fmt.Sprintf(msgParentNotFound, parent)}
	}
	return Reply{Text: fmt.Sprintf(msgChildAdded, name, parent)}
}

func (r *Router) remove(ctx context.Context, logger *zap.Logger, name string) Reply {
	removed, err := r.categories.RemoveByName(ctx, name)
	if err != nil {
		return r.failure(logger, err)
	}
	if !removed {
		logger.Debug("category not found", zap.String("name", name))
		return Reply{Text: fmt.Sprintf(msgNotFound, name)}
	}
	return Reply{Text: fmt.Sprintf(msgRemoved, name)}
}

func (r *Router) download(ctx context.Context, logger *zap.Logger) Reply {
	data, err := r.categories.ExportWorkbook(ctx)
	if err != nil {
		return r.failure(logger, err)
	}
	return Reply{Document: &Document{
		FileName:    services.ExportFileName,
		ContentType: services.ExportContentType,
		Caption:     msgDownloadCaption,
		Data:        data,
	}}
}

func (r *Router) upload(ctx context.Context, logger *zap.Logger, msg Message) Reply {
	if !msg.Interactive || r.files == nil {
		return Reply{Text: msgUploadUnsupported}
	}
	if msg.Document == nil || msg.Document.FileID == "" {
		return Reply{Text: msgUploadNeedsFile}
	}
	if msg.Document.Size > MaxUploadBytes {
		return Reply{Text: fmt.Sprintf(msgUploadTooLarge, MaxUploadBytes>>20)}
	}

	body, err := r.files.FetchFile(ctx, msg.Document.FileID)
	if err != nil {
		logger.Error("failed to fetch uploaded file", zap.String("file_id", msg.Document.FileID), zap.Error(err))
		return Reply{Text: msgUploadBadFile}
	}
	defer body.Close()

	result, err := r.categories.ImportWorkbook(ctx, io.LimitReader(body, MaxUploadBytes))
	if err != nil {
		if errors.Is(err, services.ErrExportFailed) {
			logger.Warn("uploaded workbook rejected", zap.String("file", msg.Document.FileName), zap.Error(err))
			return Reply{Text: msgUploadBadFile}
		}
		return r.failure(logger, err)
	}
	return Reply{Text: importSummary(result)}
}

func importSummary(result *models.ImportResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, msgImported, result.ProcessedItems)
	if result.FailedItems > 0 {
		b.WriteString("\n")
		fmt.Fprintf(&b, msgImportSkipped, result.FailedItems)
		for _, e := range result.Errors {
			b.WriteString("\n")
			fmt.Fprintf(&b, msgImportSkippedRow, e.Line, e.Name, e.Error)
		}
	}
	return b.String()
}

// failure logs err and picks the user facing text for it
func (r *Router) failure(logger *zap.Logger, err error) Reply {
	switch {
	case errors.Is(err, services.ErrInvalidName):
		return Reply{Text: msgAddUsage}
	case errors.Is(err, services.ErrTreeTooLarge), errors.Is(err, services.ErrTreeCorrupt):
		logger.Error("tree traversal aborted", zap.Error(err))
		return Reply{Text: msgTreeTooLarge}
	case errors.Is(err, services.ErrExportFailed):
		logger.Error("export failed", zap.Error(err))
		return Reply{Text: msgExportFailure}
	case errors.Is(err, services.ErrStorageUnavailable):
		logger.Error("storage failure", zap.Error(err))
		return Reply{Text: msgStorageFailure}
	default:
		logger.Error("command failed", zap.Error(err))
		return Reply{Text: msgInternalFailure}
	}
}
