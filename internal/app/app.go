package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"pcc-go/internal/config"
	"pcc-go/internal/detect"
	"pcc-go/internal/encryption"
	"pcc-go/internal/fs"
	"pcc-go/internal/index"
	"pcc-go/internal/model"
	"pcc-go/internal/pcc"
	"pcc-go/internal/store"
)

// App is the application layer between the CLI and pcc.Service.
// It constructs all dependencies from config, exposes high-level operations,
// and manages the index and log file lifecycle on Close.
type App struct {
	cfg       *config.Config
	blobs     pcc.BlobStore
	idx       pcc.LocalIndex
	sqlIdx    *index.SQLiteIndex // non-nil when the index is SQLite-backed
	encryptor pcc.Encryptor
	service   *pcc.Service
	op        *TransferOperation
	logFile   *os.File
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "Upload", "Update").
// The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, operation string) (*App, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("no project_id configured")
	}
	if len(cfg.Stores) == 0 {
		return nil, fmt.Errorf("no stores configured")
	}

	blobs, err := store.NewStoreFromConfig(ctx, cfg.Stores[0])
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}
	if err := blobs.ValidateSetup(ctx); err != nil {
		return nil, fmt.Errorf("validating store: %w", err)
	}

	idx, err := index.NewIndexFromConfig(cfg.Index, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating index: %w", err)
	}
	sqlIdx, _ := idx.(*index.SQLiteIndex)

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		closeIndex(idx)
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		closeIndex(idx)
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	plog := &slogAdapter{l: logger}

	walker := fs.NewWalker(cfg.Detect.Ignore)
	detector := detect.NewGitDetector(cfg.Detect.ModuleMapping, plog)

	var analyzer pcc.Analyzer
	if len(cfg.Analyzer.Command) > 0 {
		inner, err := NewCommandAnalyzer(cfg.Analyzer.Command)
		if err != nil {
			closeIndex(idx)
			logFile.Close()
			return nil, err
		}
		analyzer = pcc.NewParallelAnalyzer(inner, cfg.Cache.Workers,
			time.Duration(cfg.Analyzer.TimeoutSeconds)*time.Second)
	}

	content := pcc.NewContentStore(blobs, enc)
	meta := pcc.NewMetadataStore(blobs)
	resolver := pcc.NewResolver(meta, walker, pcc.ResolverConfig{
		SimilarityThreshold: cfg.Cache.SimilarityThreshold,
		HistoryWindow:       cfg.Cache.HistoryWindow,
		ScanBudget:          time.Duration(cfg.Cache.ScanBudgetSeconds) * time.Second,
		WeightBySize:        cfg.Cache.WeightBySize,
	}, plog)

	svc := pcc.NewService(content, meta, resolver, walker, idx, detector, analyzer,
		plog, pcc.RealClock{}, cfg.Cache.Workers)

	return &App{
		cfg:       cfg,
		blobs:     blobs,
		idx:       idx,
		sqlIdx:    sqlIdx,
		encryptor: enc,
		service:   svc,
		op:        NewTransferOperation(operation, ""),
		logFile:   logFile,
	}, nil
}

func closeIndex(idx pcc.LocalIndex) {
	if idx != nil {
		idx.Close()
	}
}

// persistOperation saves the transfer operation to the local index, giving it
// an auto-increment ID. This should only be called for transfer commands.
func (a *App) persistOperation() error {
	if a.sqlIdx == nil || a.op.Persisted() {
		return nil
	}
	id, err := a.sqlIdx.StartOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting transfer operation: %w", err)
	}
	a.op.ID = id
	return nil
}

// Find runs the tiered cache lookup for the given commit.
func (a *App) Find(ctx context.Context, branch, commitSHA, parentCommit, workspaceDir string) (*model.CacheSearchResult, error) {
	return a.service.FindBestContext(ctx, pcc.FindRequest{
		ProjectID:    a.cfg.ProjectID,
		Branch:       branch,
		CommitSHA:    commitSHA,
		ParentCommit: parentCommit,
		WorkspaceDir: workspaceDir,
	})
}

// Fork records that branch was cut from baseBranch at baseCommit.
func (a *App) Fork(ctx context.Context, branch, baseBranch, baseCommit, createdBy string) error {
	return a.service.RecordFork(ctx, a.cfg.ProjectID, branch, baseBranch, baseCommit, createdBy)
}

// Upload pushes a local context directory as the snapshot for the given commit.
func (a *App) Upload(ctx context.Context, req pcc.UploadRequest) (*model.Stats, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	req.ProjectID = a.cfg.ProjectID
	return a.service.UploadSnapshot(ctx, req)
}

// Download restores a snapshot's files into destDir. passphrase is required
// only when the store is encrypted.
func (a *App) Download(ctx context.Context, branch, commitSHA, destDir, passphrase string) (*pcc.DownloadResult, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}

	decrypt, err := a.unlock(passphrase)
	if err != nil {
		return nil, err
	}
	return a.service.DownloadSnapshot(ctx, a.cfg.ProjectID, branch, commitSHA, destDir, decrypt)
}

// Latest returns the branch-latest pointer for the given branch.
func (a *App) Latest(ctx context.Context, branch string) (*model.BranchLatest, error) {
	return a.service.GetBranchLatest(ctx, a.cfg.ProjectID, branch)
}

// Update runs the incremental analysis pipeline for the given commit.
func (a *App) Update(ctx context.Context, req pcc.IncrementalRequest, passphrase string) (*pcc.IncrementalResult, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}

	decrypt, err := a.unlock(passphrase)
	if err != nil {
		return nil, err
	}
	req.ProjectID = a.cfg.ProjectID
	req.Decrypt = decrypt
	return a.service.RunIncremental(ctx, req)
}

// History returns the most recent transfer operations from the local index.
func (a *App) History(limit int) ([]*index.Operation, error) {
	if a.sqlIdx == nil {
		return nil, fmt.Errorf("no local index configured")
	}
	return a.sqlIdx.ListOperations(limit)
}

// SetupEncryption generates and stores a new key pair protected by the
// passphrase.
func (a *App) SetupEncryption(passphrase string) error {
	if a.encryptor == nil {
		return fmt.Errorf("encryption is not enabled in config")
	}
	return a.encryptor.Setup(passphrase)
}

// EncryptionConfigured reports whether the store uses encryption and the key
// pair exists.
func (a *App) EncryptionConfigured() bool {
	return a.encryptor != nil && a.encryptor.IsConfigured()
}

// SetStatus records the outcome of the operation for the index record written
// on Close.
func (a *App) SetStatus(status string) {
	a.op.Status = status
}

// unlock returns a DecryptionContext when the store is encrypted, or nil when
// it is not.
func (a *App) unlock(passphrase string) (pcc.DecryptionContext, error) {
	if a.encryptor == nil {
		return nil, nil
	}
	if !a.encryptor.IsConfigured() {
		return nil, fmt.Errorf("encryption is enabled but keys are missing: run setup first")
	}
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase required for encrypted store")
	}
	return a.encryptor.Unlock(passphrase)
}

// Close finalizes the operation record and closes all resources.
func (a *App) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.sqlIdx.FinishOperation(a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing transfer operation: %w", err)
		}
	}

	if a.idx != nil {
		if err := a.idx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing index: %w", err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
