package orderbook

import (
	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"

	"lowlatency-exchange/domain"
)

// bucketSize is the number of distinct prices held directly in a
// Bucket's array, chosen as a power of two so price-within-bucket
// indexing is a bitmask rather than a modulo.
const bucketSize = 128
const bucketMask = bucketSize - 1

// PriceLevel is all orders resting at one price on one side. Orders
// are linked within the level by pool index (HeadIdx/TailIdx into the
// order pool), never by owning reference. Levels themselves are
// linked across buckets by price order so the matching engine can walk
// from the best level to the next-best in O(1).
type PriceLevel struct {
	Price        domain.Price
	HeadIdx      int32
	TailIdx      int32
	AggregateQty domain.Qty

	NextPrice *PriceLevel
	PrevPrice *PriceLevel
}

// IsEmpty reports whether the level has no resident orders.
func (l *PriceLevel) IsEmpty() bool {
	return l.HeadIdx == domain.NoLink
}

// Bucket is a fixed price-range shard of a ShardedPriceTree: an outer
// red-black tree (keyed by bucket ID) orders the buckets, and each
// bucket stores its own levels in a flat array indexed by
// price & bucketMask, with a doubly-linked best-price chain threading
// through them in the bucket's price order.
type Bucket struct {
	bucketID  int64
	levels    [bucketSize]*PriceLevel
	bestPrice *PriceLevel
	size      int
	isBuy     bool
}

func newBucket(bucketID int64, isBuy bool) *Bucket {
	return &Bucket{bucketID: bucketID, isBuy: isBuy}
}

func (b *Bucket) isBetterPrice(newPrice, existingPrice domain.Price) bool {
	if b.isBuy {
		return newPrice > existingPrice
	}
	return newPrice < existingPrice
}

// insert links level into the bucket's price-ordered chain. level must
// not already be present.
func (b *Bucket) insert(level *PriceLevel) {
	index := int64(level.Price) & bucketMask
	b.levels[index] = level
	b.size++

	if b.bestPrice == nil {
		b.bestPrice = level
		return
	}
	if b.isBetterPrice(level.Price, b.bestPrice.Price) {
		level.NextPrice = b.bestPrice
		b.bestPrice.PrevPrice = level
		b.bestPrice = level
		return
	}
	current := b.bestPrice
	for current.NextPrice != nil && !b.isBetterPrice(level.Price, current.NextPrice.Price) {
		current = current.NextPrice
	}
	level.NextPrice = current.NextPrice
	level.PrevPrice = current
	if current.NextPrice != nil {
		current.NextPrice.PrevPrice = level
	}
	current.NextPrice = level
}

// remove unlinks the level at price from the bucket, if present.
func (b *Bucket) remove(price domain.Price) {
	index := int64(price) & bucketMask
	level := b.levels[index]
	if level == nil || level.Price != price {
		return
	}
	b.levels[index] = nil
	b.size--

	if level.PrevPrice != nil {
		level.PrevPrice.NextPrice = level.NextPrice
	} else {
		b.bestPrice = level.NextPrice
	}
	if level.NextPrice != nil {
		level.NextPrice.PrevPrice = level.PrevPrice
	}
	level.NextPrice = nil
	level.PrevPrice = nil
}

func (b *Bucket) get(price domain.Price) *PriceLevel {
	index := int64(price) & bucketMask
	level := b.levels[index]
	if level == nil || level.Price != price {
		return nil
	}
	return level
}

// ShardedPriceTree orders price levels for one side of one ticker's
// book: buckets by an outer red-black tree for O(log m) bucket lookup
// (m = number of distinct buckets in use, always small relative to
// the number of distinct prices), levels within a bucket by an O(1)
// array-indexed doubly-linked chain.
type ShardedPriceTree struct {
	buckets    *rbt.Tree[int64, *Bucket]
	bestBucket *Bucket
	bestPrice  *PriceLevel
	isBuy      bool
}

// NewShardedPriceTree creates an empty tree for one side. isBuy orders
// buckets descending (best bid is highest price); !isBuy orders them
// ascending (best ask is lowest price).
func NewShardedPriceTree(isBuy bool) *ShardedPriceTree {
	var cmp func(a, b int64) int
	if isBuy {
		cmp = func(a, b int64) int {
			switch {
			case a > b:
				return -1
			case a < b:
				return 1
			default:
				return 0
			}
		}
	} else {
		cmp = func(a, b int64) int {
			switch {
			case a < b:
				return -1
			case a > b:
				return 1
			default:
				return 0
			}
		}
	}
	return &ShardedPriceTree{
		buckets: rbt.NewWith[int64, *Bucket](cmp),
		isBuy:   isBuy,
	}
}

func bucketIDFor(price domain.Price) int64 {
	return int64(price) / bucketSize
}

// GetLevel returns the level at price, or nil if none exists.
func (t *ShardedPriceTree) GetLevel(price domain.Price) *PriceLevel {
	bucket, found := t.buckets.Get(bucketIDFor(price))
	if !found {
		return nil
	}
	return bucket.get(price)
}

// Insert adds a new, empty level at its price. The caller must not
// call Insert for a price that already has a level; use GetLevel
// first.
func (t *ShardedPriceTree) Insert(level *PriceLevel) {
	bucketID := bucketIDFor(level.Price)
	bucket, found := t.buckets.Get(bucketID)
	if !found {
		bucket = newBucket(bucketID, t.isBuy)
		t.buckets.Put(bucketID, bucket)
	}
	bucket.insert(level)
	t.updateBestAfterInsert(bucket)
}

// Remove deletes the level at price. The caller must have already
// emptied it (AggregateQty == 0, no linked orders).
func (t *ShardedPriceTree) Remove(price domain.Price) {
	bucketID := bucketIDFor(price)
	bucket, found := t.buckets.Get(bucketID)
	if !found {
		return
	}
	bucket.remove(price)
	if bucket.size == 0 {
		t.buckets.Remove(bucketID)
		if t.bestBucket == bucket {
			t.bestBucket = nil
			t.bestPrice = nil
			t.refreshBestFromTree()
		}
		return
	}
	if t.bestPrice != nil && t.bestPrice.Price == price {
		t.bestBucket = bucket
		t.bestPrice = bucket.bestPrice
	}
}

// BestLevel returns the best (highest bid / lowest ask) level, or nil
// if the side is empty.
func (t *ShardedPriceTree) BestLevel() *PriceLevel {
	return t.bestPrice
}

// IsEmpty reports whether the side has no resting levels at all.
func (t *ShardedPriceTree) IsEmpty() bool {
	return t.buckets.Empty()
}

func (t *ShardedPriceTree) updateBestAfterInsert(bucket *Bucket) {
	if t.bestBucket == nil {
		t.bestBucket = bucket
		t.bestPrice = bucket.bestPrice
		return
	}
	if t.isBetterBucket(bucket.bucketID, t.bestBucket.bucketID) {
		t.bestBucket = bucket
		t.bestPrice = bucket.bestPrice
	} else if bucket == t.bestBucket {
		t.bestPrice = bucket.bestPrice
	}
}

func (t *ShardedPriceTree) refreshBestFromTree() {
	if t.buckets.Empty() {
		return
	}
	node := t.buckets.Left()
	if node != nil {
		t.bestBucket = node.Value
		t.bestPrice = node.Value.bestPrice
	}
}

func (t *ShardedPriceTree) isBetterBucket(newID, existingID int64) bool {
	if t.isBuy {
		return newID > existingID
	}
	return newID < existingID
}

// Depth walks up to maxLevels levels from best to worst, appending a
// snapshot of each to dst, and returns the extended slice. It is a
// diagnostic read, never called from the matching hot path.
func (t *ShardedPriceTree) Depth(maxLevels int, dst []PriceLevel) []PriceLevel {
	level := t.bestPrice
	for i := 0; i < maxLevels && level != nil; i++ {
		dst = append(dst, PriceLevel{Price: level.Price, AggregateQty: level.AggregateQty})
		level = level.NextPrice
	}
	return dst
}
