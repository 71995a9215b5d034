package engine

import (
	"image"
	"sync"
)

// BoardCache holds the mutable, per-board state a running game needs
// between throws: each camera's reference (no-dart) background frame and
// the dart masks already scored on this board, so a new throw's motion mask
// can be computed as a diff against "no darts yet" and any previously stuck
// darts don't get re-picked up as new motion. Every board has its own
// mutex; there is no global lock over detection state.
type BoardCache struct {
	mu sync.Mutex

	referenceFrames map[string]*image.Gray
	prevDartMasks   map[string]*Bitmap
}

func newBoardCache() *BoardCache {
	return &BoardCache{
		referenceFrames: make(map[string]*image.Gray),
		prevDartMasks:   make(map[string]*Bitmap),
	}
}

// withLock runs fn while holding the board's mutex.
func (bc *BoardCache) withLock(fn func()) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	fn()
}

func (bc *BoardCache) reset() {
	bc.withLock(func() {
		bc.referenceFrames = make(map[string]*image.Gray)
		bc.prevDartMasks = make(map[string]*Bitmap)
	})
}

func (bc *BoardCache) reference(cameraID string) (*image.Gray, bool) {
	var img *image.Gray
	var ok bool
	bc.withLock(func() {
		img, ok = bc.referenceFrames[cameraID]
	})
	return img, ok
}

func (bc *BoardCache) setReference(cameraID string, img *image.Gray) {
	bc.withLock(func() {
		bc.referenceFrames[cameraID] = img
	})
}

func (bc *BoardCache) prevMask(cameraID string) *Bitmap {
	var b *Bitmap
	bc.withLock(func() {
		b = bc.prevDartMasks[cameraID]
	})
	return b
}

// accumulateMask folds newly-detected dart pixels into the camera's
// standing prevDartMask so a future throw's motion mask excludes them.
func (bc *BoardCache) accumulateMask(cameraID string, mask *Bitmap) {
	bc.withLock(func() {
		existing := bc.prevDartMasks[cameraID]
		if existing == nil {
			cloned := newBitmap(mask.W, mask.H)
			copy(cloned.Bits, mask.Bits)
			bc.prevDartMasks[cameraID] = cloned
			return
		}
		for i, v := range mask.Bits {
			if v {
				existing.Bits[i] = true
			}
		}
	})
}

// boardRegistry is the root Engine's registry of BoardCache instances,
// keyed by board id. The registry map itself is guarded independently of
// any individual BoardCache's mutex, so looking up one board never blocks
// work on another.
type boardRegistry struct {
	mu     sync.Mutex
	boards map[string]*BoardCache
}

func newBoardRegistry() *boardRegistry {
	return &boardRegistry{boards: make(map[string]*BoardCache)}
}

func (r *boardRegistry) getOrCreate(boardID string) *BoardCache {
	r.mu.Lock()
	defer r.mu.Unlock()
	bc, ok := r.boards[boardID]
	if !ok {
		bc = newBoardCache()
		r.boards[boardID] = bc
	}
	return bc
}

func (r *boardRegistry) clear(boardID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.boards, boardID)
}
