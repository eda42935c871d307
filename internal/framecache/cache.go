// Package framecache memoizes sampler output per animation frame under a
// fixed memory budget.
package framecache

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/mldeformer/internal/assets"
	"github.com/Faultbox/mldeformer/internal/logger"
	"github.com/Faultbox/mldeformer/internal/sampler"
)

// NotCached marks a frame without a slot in the frame map.
const NotCached = -1

// Settings configures a Cache.
type Settings struct {
	Asset *assets.Asset
	// MemoryBudgetBytes bounds the number of slots. Zero still allows one.
	MemoryBudgetBytes int64
	Eviction          EvictionPolicy
	DebugVectors      bool
	// Logger defaults to the package logger named "framecache".
	Logger *zap.Logger
}

// Stats contains counters about cache use.
type Stats struct {
	Hits      int64 // lookups served from a slot
	Misses    int64 // lookups that generated a frame
	Generated int64 // frames written into slots
	Evictions int64 // generated frames that replaced a resident frame
	Capacity  int   // slot count
	Cached    int   // frames currently resolvable
}

// Cache maps animation frames to training frames. It is not safe for
// concurrent use.
type Cache struct {
	id  uuid.UUID
	log *zap.Logger

	sampler  *sampler.Sampler
	eviction EvictionPolicy
	valid    bool

	frames     []TrainingFrame // slots
	frameMap   []int           // per animation frame: slot or NotCached
	cursor     int
	frameBytes int

	hits, misses, generated, evictions int64
}

// New creates and initializes a cache.
func New(settings Settings) *Cache {
	c := &Cache{}
	c.Init(settings)
	return c
}

// Init sizes the cache for settings.Asset. An asset without a skeletal mesh,
// geometry cache or animation leaves the cache invalid; check IsValid.
func (c *Cache) Init(settings Settings) {
	c.reset()
	c.id = uuid.New()
	c.log = settings.Logger
	if c.log == nil {
		c.log = logger.Named("framecache")
	}
	c.log = c.log.With(zap.String("cache", c.id.String()))
	c.eviction = settings.Eviction

	a := settings.Asset
	if a == nil {
		c.log.Warn("Frame cache has no asset")
		return
	}
	if err := a.Validate(); err != nil {
		c.log.Warn("Frame cache asset incomplete", zap.String("asset", a.Name), zap.Error(err))
		return
	}

	s, err := sampler.New(sampler.Settings{
		Asset:        a,
		DebugVectors: settings.DebugVectors,
		Logger:       c.log,
	})
	if err != nil {
		c.log.Warn("Frame cache sampler init failed", zap.Error(err))
		return
	}
	c.sampler = s

	// Generate frame 0 once to measure the real size of a frame.
	var probe TrainingFrame
	s.Update(0)
	probe.InitFromSamplerItem(s.Data(), 0)
	c.frameBytes = probe.CalcMemUsageInBytes()

	totalFrames := max(a.NumTrainingFrames(), 1)
	capacity := calcCapacity(totalFrames, settings.MemoryBudgetBytes, c.frameBytes)

	c.frames = make([]TrainingFrame, capacity)
	for i := range c.frames {
		c.frames[i] = NewTrainingFrame()
	}
	c.frameMap = make([]int, totalFrames)
	c.resetFrameMap()
	c.valid = true

	c.log.Info("Frame cache initialized",
		zap.String("asset", a.Name),
		zap.Int("frames", totalFrames),
		zap.Int("frame_bytes", c.frameBytes),
		zap.Int64("budget_bytes", settings.MemoryBudgetBytes),
		zap.Int("capacity", capacity),
		zap.Stringer("eviction", c.eviction))
}

// calcCapacity returns min(totalFrames, budget/frameBytes + 1), at least 1.
func calcCapacity(totalFrames int, budget int64, frameBytes int) int {
	if frameBytes <= 0 {
		return max(totalFrames, 1)
	}
	if budget < 0 {
		budget = 0
	}
	slots := budget/int64(frameBytes) + 1
	if slots > int64(totalFrames) {
		slots = int64(totalFrames)
	}
	return max(int(slots), 1)
}

func (c *Cache) reset() {
	if c.sampler != nil {
		c.sampler.Close()
	}
	c.sampler = nil
	c.valid = false
	c.frames = nil
	c.frameMap = nil
	c.cursor = 0
	c.frameBytes = 0
	c.hits, c.misses, c.generated, c.evictions = 0, 0, 0, 0
}

// IsValid reports whether Init found a complete asset.
func (c *Cache) IsValid() bool {
	return c.valid
}

func (c *Cache) mustBeValid() {
	if !c.valid {
		panic("framecache: cache used while invalid")
	}
}

func (c *Cache) clampFrame(frame int) int {
	if frame >= len(c.frameMap) {
		frame = len(c.frameMap) - 1
	}
	if frame < 0 {
		frame = 0
	}
	return frame
}

// GetTrainingFrameForAnimFrame returns the training data of frame, generating
// it on a miss. The frame is clamped into range. The returned frame is owned
// by the cache and stays valid until the next miss.
func (c *Cache) GetTrainingFrameForAnimFrame(frame int) *TrainingFrame {
	c.mustBeValid()
	frame = c.clampFrame(frame)
	if slot := c.frameMap[frame]; slot != NotCached {
		c.hits++
		return &c.frames[slot]
	}
	c.misses++
	return c.GenerateFrame(frame)
}

// GenerateFrame samples frame and stores it in the slot chosen by the
// eviction policy, replacing whatever the slot held.
func (c *Cache) GenerateFrame(frame int) *TrainingFrame {
	c.mustBeValid()
	frame = c.clampFrame(frame)

	c.sampler.Update(frame)

	slot := c.cursor
	c.cursor = c.eviction.next(c.cursor, len(c.frames))

	tf := &c.frames[slot]
	if !tf.IsEmpty() {
		c.evictions++
		c.log.Debug("Evicting frame",
			zap.Int("frame", tf.AnimFrameIndex),
			zap.Int("slot", slot))
	}
	tf.InitFromSamplerItem(c.sampler.Data(), frame)
	c.generated++
	c.rebuildFrameMap()

	c.log.Debug("Generated frame",
		zap.Int("frame", frame),
		zap.Int("slot", slot))
	return tf
}

// Prefetch generates the frames in [start, end], stopping once as many frames
// as the cache holds have been generated. It returns the number generated.
func (c *Cache) Prefetch(start, end int) int {
	c.mustBeValid()
	start = c.clampFrame(start)
	end = c.clampFrame(end)

	n := 0
	for frame := start; frame <= end && n < len(c.frames); frame++ {
		c.GenerateFrame(frame)
		n++
	}
	c.log.Info("Prefetched frames",
		zap.Int("start", start),
		zap.Int("end", end),
		zap.Int("generated", n))
	return n
}

func (c *Cache) resetFrameMap() {
	for i := range c.frameMap {
		c.frameMap[i] = NotCached
	}
}

// rebuildFrameMap points every frame at the slot holding it.
func (c *Cache) rebuildFrameMap() {
	c.resetFrameMap()
	for slot := range c.frames {
		if f := c.frames[slot].AnimFrameIndex; f >= 0 {
			c.frameMap[f] = slot
		}
	}
}

// Clear empties every slot. Capacity is unchanged.
func (c *Cache) Clear() {
	for i := range c.frames {
		c.frames[i].Clear()
	}
	c.resetFrameMap()
	c.cursor = 0
}

// SlotForFrame returns the slot holding frame, or NotCached. It does not
// generate anything.
func (c *Cache) SlotForFrame(frame int) int {
	if frame < 0 || frame >= len(c.frameMap) {
		return NotCached
	}
	return c.frameMap[frame]
}

// NumCachedFrames returns how many distinct frames resolve to a slot.
func (c *Cache) NumCachedFrames() int {
	n := 0
	for _, slot := range c.frameMap {
		if slot != NotCached {
			n++
		}
	}
	return n
}

// CalcMemUsageInBytes sums slot contents and the sampler's buffers.
func (c *Cache) CalcMemUsageInBytes() int {
	n := 0
	for i := range c.frames {
		n += c.frames[i].CalcMemUsageInBytes()
	}
	if c.sampler != nil {
		n += c.sampler.CalcMemUsageInBytes()
	}
	return n
}

// Capacity returns the slot count fixed by Init.
func (c *Cache) Capacity() int { return len(c.frames) }

// FrameBytes returns the per-frame size measured by Init.
func (c *Cache) FrameBytes() int { return c.frameBytes }

// NumFrames returns the number of animation frames.
func (c *Cache) NumFrames() int { return len(c.frameMap) }

// NumVertices returns the imported source vertex count.
func (c *Cache) NumVertices() int {
	if c.sampler == nil {
		return 0
	}
	return c.sampler.NumImportedVertices()
}

// NumBones returns the number of bones in each frame's rotations.
func (c *Cache) NumBones() int {
	if c.sampler == nil {
		return 0
	}
	return c.sampler.NumBones()
}

// NumCurves returns the number of curve values in each frame.
func (c *Cache) NumCurves() int {
	if c.sampler == nil {
		return 0
	}
	return c.sampler.NumCurves()
}

// Eviction returns the policy in use.
func (c *Cache) Eviction() EvictionPolicy { return c.eviction }

// Sampler returns the cache's sampler, or nil when invalid.
func (c *Cache) Sampler() *sampler.Sampler { return c.sampler }

// ID identifies the cache in logs.
func (c *Cache) ID() uuid.UUID { return c.id }

// Stats returns usage counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Generated: c.generated,
		Evictions: c.evictions,
		Capacity:  len(c.frames),
		Cached:    c.NumCachedFrames(),
	}
}

// Close releases the sampler and leaves the cache invalid.
func (c *Cache) Close() {
	c.reset()
}
