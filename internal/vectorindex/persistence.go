package vectorindex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/apierr"
	"github.com/connexus-ai/ragbox-backend/internal/model"
)

// File names and binary layout per the persistence format: vectors and
// metadata are written as separate files, each via write-tmp, fsync,
// rename, grounded on chromem-go's persist() atomic-write discipline
// (persistence.go) but with this package's own fixed record layout instead
// of chromem-go's gob/gzip envelope.
const (
	vectorsFileName = "vector_index.bin"
	metaFileName    = "vector_index_meta.bin"

	vectorsMagic = "PSIV"
	metaMagic    = "PSIM"
	formatVersion uint16 = 1
)

func strategyByte(s Strategy) byte {
	switch s {
	case StrategyHNSW:
		return 1
	case StrategyIVFFlat:
		return 2
	case StrategyIVFPQ:
		return 3
	default:
		return 0
	}
}

func strategyFromByte(b byte) Strategy {
	switch b {
	case 1:
		return StrategyHNSW
	case 2:
		return StrategyIVFFlat
	case 3:
		return StrategyIVFPQ
	default:
		return StrategyFlat
	}
}

// Save writes the index's vectors and metadata to dir using atomic
// write-tmp-then-rename for each file (§6).
func (idx *Index) Save(dir string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ids := make([]uint64, 0, len(idx.papers))
	for id := range idx.papers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] }) // deterministic on-disk order

	if err := idx.saveVectors(dir, ids); err != nil {
		return fmt.Errorf("vectorindex.Save: %w", err)
	}
	if err := idx.saveMeta(dir, ids); err != nil {
		return fmt.Errorf("vectorindex.Save: %w", err)
	}
	return nil
}

func (idx *Index) saveVectors(dir string, ids []uint64) error {
	return atomicWrite(filepath.Join(dir, vectorsFileName), func(w *bufio.Writer) error {
		if _, err := w.WriteString(vectorsMagic); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, formatVersion); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, uint16(idx.dim)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, uint64(len(ids))); err != nil {
			return err
		}
		for _, id := range ids {
			p := idx.papers[id]
			if err := binary.Write(w, binary.BigEndian, id); err != nil {
				return err
			}
			for _, f := range p.Embedding {
				if err := binary.Write(w, binary.BigEndian, f); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (idx *Index) saveMeta(dir string, ids []uint64) error {
	return atomicWrite(filepath.Join(dir, metaFileName), func(w *bufio.Writer) error {
		if _, err := w.WriteString(metaMagic); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, formatVersion); err != nil {
			return err
		}
		if err := w.WriteByte(strategyByte(idx.strategy)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, uint16(idx.dim)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, uint64(len(ids))); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, idx.nextID); err != nil {
			return err
		}
		for _, id := range ids {
			p := idx.papers[id]
			if err := binary.Write(w, binary.BigEndian, id); err != nil {
				return err
			}
			if _, err := w.Write(p.ContentHash[:]); err != nil {
				return err
			}
			fields := []string{
				p.Title,
				p.Abstract,
				strings.Join(p.Authors, "; "),
				p.Source,
				p.DocumentType,
				p.PublicationDate,
				p.DOI,
				p.URL,
			}
			for _, s := range fields {
				if err := writeLPString(w, s); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func writeLPString(w *bufio.Writer, s string) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

func readLPString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// atomicWrite writes to path+".tmp", fsyncs, then renames over path.
func atomicWrite(path string, fn func(w *bufio.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := fn(w); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads the index back from dir. A magic/version mismatch on either
// file marks the index corrupted and leaves it empty rather than failing
// startup (§6). A dimension mismatch is refused outright; a strategy
// mismatch alone loads the data read-only until the next full rebuild (§9).
func (idx *Index) Load(dir string) error {
	vectors, dim, err := loadVectors(filepath.Join(dir, vectorsFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		idx.markCorrupted()
		return nil
	}

	papers, strategy, nextID, err := loadMeta(filepath.Join(dir, metaFileName), vectors)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		idx.markCorrupted()
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if dim != idx.dim {
		return apierr.NewUnavailable(fmt.Sprintf("on-disk dimension %d does not match configured dimension %d", dim, idx.dim), nil)
	}

	idx.papers = papers
	idx.nextID = nextID
	idx.corrupted = false

	if strategy != idx.strategy {
		idx.strategy = strategy
		idx.engine = newEngine(strategy)
		idx.readOnly = true
		vecMap := make(map[uint64][]float32, len(papers))
		for id, p := range papers {
			vecMap[id] = p.Embedding
		}
		idx.engine.build(vecMap, dim)
		return nil
	}

	idx.readOnly = false
	idx.rebuildLocked()
	return nil
}

func (idx *Index) markCorrupted() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.corrupted = true
	idx.papers = make(map[uint64]*model.Paper)
	idx.nextID = 0
	idx.strategy = StrategyFlat
	idx.engine = newFlatEngine()
	idx.engine.build(nil, idx.dim)
}

func loadVectors(path string) (map[uint64][]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, 0, err
	}
	if string(magic) != vectorsMagic {
		return nil, 0, fmt.Errorf("vectorindex: bad vectors magic")
	}
	var version uint16
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, 0, err
	}
	if version != formatVersion {
		return nil, 0, fmt.Errorf("vectorindex: unsupported vectors version %d", version)
	}
	var dim16 uint16
	if err := binary.Read(r, binary.BigEndian, &dim16); err != nil {
		return nil, 0, err
	}
	dim := int(dim16)
	var count uint64
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, 0, err
	}

	out := make(map[uint64][]float32, count)
	for i := uint64(0); i < count; i++ {
		var id uint64
		if err := binary.Read(r, binary.BigEndian, &id); err != nil {
			return nil, 0, err
		}
		vec := make([]float32, dim)
		for d := 0; d < dim; d++ {
			if err := binary.Read(r, binary.BigEndian, &vec[d]); err != nil {
				return nil, 0, err
			}
		}
		out[id] = vec
	}
	return out, dim, nil
}

func loadMeta(path string, vectors map[uint64][]float32) (map[uint64]*model.Paper, Strategy, uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", 0, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, "", 0, err
	}
	if string(magic) != metaMagic {
		return nil, "", 0, fmt.Errorf("vectorindex: bad meta magic")
	}
	var version uint16
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, "", 0, err
	}
	if version != formatVersion {
		return nil, "", 0, fmt.Errorf("vectorindex: unsupported meta version %d", version)
	}
	strategyB, err := r.ReadByte()
	if err != nil {
		return nil, "", 0, err
	}
	var dim16 uint16
	if err := binary.Read(r, binary.BigEndian, &dim16); err != nil {
		return nil, "", 0, err
	}
	var count uint64
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, "", 0, err
	}
	var nextID uint64
	if err := binary.Read(r, binary.BigEndian, &nextID); err != nil {
		return nil, "", 0, err
	}

	papers := make(map[uint64]*model.Paper, count)
	for i := uint64(0); i < count; i++ {
		var id uint64
		if err := binary.Read(r, binary.BigEndian, &id); err != nil {
			return nil, "", 0, err
		}
		var hash [32]byte
		if _, err := io.ReadFull(r, hash[:]); err != nil {
			return nil, "", 0, err
		}
		title, err := readLPString(r)
		if err != nil {
			return nil, "", 0, err
		}
		abstract, err := readLPString(r)
		if err != nil {
			return nil, "", 0, err
		}
		authorsJoined, err := readLPString(r)
		if err != nil {
			return nil, "", 0, err
		}
		source, err := readLPString(r)
		if err != nil {
			return nil, "", 0, err
		}
		docType, err := readLPString(r)
		if err != nil {
			return nil, "", 0, err
		}
		pubDate, err := readLPString(r)
		if err != nil {
			return nil, "", 0, err
		}
		doi, err := readLPString(r)
		if err != nil {
			return nil, "", 0, err
		}
		url, err := readLPString(r)
		if err != nil {
			return nil, "", 0, err
		}

		var authors []string
		if authorsJoined != "" {
			authors = strings.Split(authorsJoined, "; ")
		}

		papers[id] = &model.Paper{
			PaperID:         id,
			ContentHash:     hash,
			Title:           title,
			Abstract:        abstract,
			Authors:         authors,
			Source:          source,
			DocumentType:    docType,
			PublicationDate: pubDate,
			DOI:             doi,
			URL:             url,
			Embedding:       vectors[id],
		}
	}
	return papers, strategyFromByte(strategyB), nextID, nil
}

// Backup copies both index files into a timestamped directory under dir,
// per §6 ("backup is a directory named backup_<UTCstamp>/").
func (idx *Index) Backup(dir string, now time.Time) (string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	stamp := now.UTC().Format("20060102T150405Z")
	backupDir := filepath.Join(dir, "backup_"+stamp)
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", fmt.Errorf("vectorindex.Backup: %w", err)
	}
	for _, name := range []string{vectorsFileName, metaFileName} {
		src := filepath.Join(dir, name)
		data, err := os.ReadFile(src)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("vectorindex.Backup: read %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(backupDir, name), data, 0o644); err != nil {
			return "", fmt.Errorf("vectorindex.Backup: write %s: %w", name, err)
		}
	}
	return backupDir, nil
}
