// Package store owns the append-only backup ledger and the local snapshot
// archive. All version-increment and integrity decisions live here; the
// orchestrator only consumes the verdicts.
package store

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rolandhq/flowvault/internal/domain"
)

const ledgerFile = "backups.jsonl"

// Store persists one JSON record per line, oldest first, so external
// tooling can replay or audit the ledger without this code.
type Store struct {
	basePath   string
	compressor domain.Compressor

	mu sync.Mutex
}

// New creates the ledger directory if needed. A nil compressor stores
// snapshot payloads uncompressed.
func New(basePath string, compressor domain.Compressor) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(basePath, "snapshots"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	return &Store{basePath: basePath, compressor: compressor}, nil
}

// LedgerPath returns the on-disk location of the ledger file.
func (s *Store) LedgerPath() string {
	return filepath.Join(s.basePath, ledgerFile)
}

// Append adds one record to the ledger. Records are never rewritten.
func (s *Store) Append(record domain.BackupRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode backup record: %w", err)
	}

	f, err := os.OpenFile(s.LedgerPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append to ledger: %w", err)
	}
	return nil
}

// List returns every backup record, oldest first.
func (s *Store) List() ([]domain.BackupRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.LedgerPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	var records []domain.BackupRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record domain.BackupRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("corrupt ledger entry: %w", err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	return records, nil
}

// ListWorkflow returns the records for one workflow id, oldest first.
func (s *Store) ListWorkflow(workflowID string) ([]domain.BackupRecord, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	var records []domain.BackupRecord
	for _, record := range all {
		if record.WorkflowID == workflowID {
			records = append(records, record)
		}
	}
	return records, nil
}

// Latest returns the most recent successful record for a workflow id.
func (s *Store) Latest(workflowID string) (domain.BackupRecord, bool, error) {
	records, err := s.ListWorkflow(workflowID)
	if err != nil {
		return domain.BackupRecord{}, false, err
	}
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Succeeded() {
			return records[i], true, nil
		}
	}
	return domain.BackupRecord{}, false, nil
}

// Plan is the store's verdict on a fetched payload: the version the next
// snapshot would get and whether upstream actually changed.
type Plan struct {
	WorkflowID    string
	PrevVersion   domain.Version
	PrevCommitRef string
	NextVersion   domain.Version
	ContentHash   string
	Unchanged     bool
}

// Evaluate validates the payload and decides the next version. An
// unchanged payload keeps the previous version: the ledger still gets an
// audit entry, but no new snapshot is minted and the orchestrator skips
// the version-control commit entirely.
func (s *Store) Evaluate(workflowID string, payload []byte, bump domain.Bump) (Plan, error) {
	if err := ValidatePayload(payload); err != nil {
		return Plan{}, err
	}

	hash := HashPayload(payload)

	latest, ok, err := s.Latest(workflowID)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{WorkflowID: workflowID, ContentHash: hash}
	if !ok {
		plan.NextVersion = domain.Version{}.Next(bump)
		return plan, nil
	}

	plan.PrevVersion = latest.Version
	plan.PrevCommitRef = latest.CommitRef
	if latest.ContentHash == hash {
		plan.NextVersion = latest.Version
		plan.Unchanged = true
		return plan, nil
	}

	plan.NextVersion = latest.Version.Next(bump)
	return plan, nil
}

// HashPayload computes the content digest used for dedup and integrity.
func HashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// SaveSnapshot writes the snapshot payload into the local archive.
func (s *Store) SaveSnapshot(snap domain.WorkflowSnapshot) error {
	dir := filepath.Join(s.basePath, "snapshots", snap.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data := snap.Payload
	if s.compressor != nil {
		var err error
		data, err = s.compressor.Compress(data)
		if err != nil {
			return fmt.Errorf("failed to compress snapshot: %w", err)
		}
	}

	if err := os.WriteFile(s.snapshotPath(snap.ID, snap.Version), data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot back from the ledger and the archive,
// verifying the payload against the recorded content hash.
func (s *Store) LoadSnapshot(workflowID string, version domain.Version) (domain.WorkflowSnapshot, error) {
	records, err := s.ListWorkflow(workflowID)
	if err != nil {
		return domain.WorkflowSnapshot{}, err
	}

	var meta *domain.BackupRecord
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Succeeded() && records[i].Version == version {
			meta = &records[i]
			break
		}
	}
	if meta == nil {
		return domain.WorkflowSnapshot{}, domain.NewError(domain.KindNotFound,
			fmt.Sprintf("no snapshot %s for workflow %s", version, workflowID), nil)
	}

	data, err := os.ReadFile(s.snapshotPath(workflowID, version))
	if os.IsNotExist(err) {
		return domain.WorkflowSnapshot{}, domain.NewError(domain.KindNotFound,
			fmt.Sprintf("snapshot %s for workflow %s is missing from the archive", version, workflowID), nil)
	}
	if err != nil {
		return domain.WorkflowSnapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	if s.compressor != nil {
		data, err = s.compressor.Decompress(data)
		if err != nil {
			return domain.WorkflowSnapshot{}, fmt.Errorf("failed to decompress snapshot: %w", err)
		}
	}

	if hash := HashPayload(data); hash != meta.ContentHash {
		return domain.WorkflowSnapshot{}, fmt.Errorf(
			"snapshot %s for workflow %s failed integrity check: hash %s does not match ledger %s",
			version, workflowID, hash, meta.ContentHash)
	}

	return domain.WorkflowSnapshot{
		ID:          workflowID,
		Version:     version,
		Payload:     data,
		ContentHash: meta.ContentHash,
		CreatedAt:   meta.FinishedAt,
		CommitRef:   meta.CommitRef,
	}, nil
}

// PruneSnapshots removes archived payloads beyond the keep most recent
// committed versions and returns the deleted archive names so offsite
// mirrors can prune the same files. The ledger itself is never touched.
func (s *Store) PruneSnapshots(workflowID string, keep int) ([]string, error) {
	records, err := s.ListWorkflow(workflowID)
	if err != nil {
		return nil, err
	}

	var versions []domain.Version
	seen := map[domain.Version]bool{}
	for _, record := range records {
		if record.Outcome == domain.OutcomeCommitted && !seen[record.Version] {
			versions = append(versions, record.Version)
			seen[record.Version] = true
		}
	}
	if len(versions) <= keep {
		return nil, nil
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i].Compare(versions[j]) < 0 })

	var deleted []string
	for _, version := range versions[:len(versions)-keep] {
		path := s.snapshotPath(workflowID, version)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return deleted, fmt.Errorf("failed to prune snapshot %s: %w", version, err)
		}
		deleted = append(deleted, s.ArchiveName(workflowID, version))
	}
	return deleted, nil
}

// ArchiveName is the storage-relative name of a snapshot payload, shared
// with offsite archive targets.
func (s *Store) ArchiveName(workflowID string, version domain.Version) string {
	name := fmt.Sprintf("%s/%s.json", workflowID, version)
	if s.compressor != nil {
		name += ".gz"
	}
	return name
}

func (s *Store) snapshotPath(workflowID string, version domain.Version) string {
	return filepath.Join(s.basePath, "snapshots", filepath.FromSlash(s.ArchiveName(workflowID, version)))
}

// SnapshotFilePath exposes the archive location for mirroring uploads.
func (s *Store) SnapshotFilePath(workflowID string, version domain.Version) string {
	return s.snapshotPath(workflowID, version)
}
