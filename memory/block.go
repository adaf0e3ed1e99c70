package memory

import "github.com/cockroachdb/errors"

// Block is an allocation owned by a single holder. It is released exactly once, however many times
// Free is called, which lets holders defer Free without tracking whether the block was already
// handed back.
type Block struct {
	info    *Info
	address Address
	size    int
}

// NewBlock allocates size bytes as a Block
func (i *Info) NewBlock(size int) (*Block, error) {
	address, err := i.Allocate(size)
	if err != nil {
		return nil, err
	}

	return &Block{
		info:    i,
		address: address,
		size:    size,
	}, nil
}

// WithBlock allocates size bytes, calls fn with them, and releases them when fn returns or panics
func (i *Info) WithBlock(size int, fn func(block *Block) error) error {
	block, err := i.NewBlock(size)
	if err != nil {
		return err
	}
	defer block.Free()

	return fn(block)
}

func (b *Block) Address() Address {
	return b.address
}

func (b *Block) Size() int {
	return b.size
}

// Freed returns true if the block has already been released
func (b *Block) Freed() bool {
	return b.address == NullAddress
}

// Bytes retrieves the block's memory. The slice is valid until the block is resized or freed.
func (b *Block) Bytes() []byte {
	if b.Freed() {
		panic(errors.AssertionFailedf("attempted to access a block that has already been freed"))
	}

	return b.info.Bytes(b.address)
}

// Resize changes the size of the block, preserving its contents up to the smaller of the two sizes.
// Resizing to zero frees the block. If an error is returned the block is unchanged.
func (b *Block) Resize(size int) error {
	if b.Freed() {
		panic(errors.AssertionFailedf("attempted to resize a block that has already been freed"))
	}

	if size < 0 {
		return errors.Wrapf(ErrInvalidSize, "size %d", size)
	}

	address, err := b.info.Resize(b.address, size)
	if err != nil {
		return err
	}

	b.address = address
	b.size = size
	return nil
}

// Free releases the block. Calling Free on a block that was already freed does nothing.
func (b *Block) Free() {
	if b.Freed() {
		return
	}

	b.info.Release(b.address)
	b.address = NullAddress
	b.size = 0
}
