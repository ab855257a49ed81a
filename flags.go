package bindlessvk

// PipelineStage, MemoryAccessType, BufferUsage, ImageUsage, DescriptorType and
// ImageLayout mirror the corresponding bit-flag enums in the original RHI
// (renderer/public/renderer/rhi.h). They are kept as distinct Go types over
// uint32 so barrier and descriptor-binding call sites read the way the
// original's strongly-typed enum classes did, rather than passing bare ints.

type PipelineStage uint32

const (
	PipelineStageTopOfPipe PipelineStage = 1 << iota
	PipelineStageDrawIndirect
	PipelineStageVertexInput
	PipelineStageVertexShader
	PipelineStageFragmentShader
	PipelineStageEarlyFragmentTests
	PipelineStageLateFragmentTests
	PipelineStageColorAttachmentOutput
	PipelineStageComputeShader
	PipelineStageTransfer
	PipelineStageBottomOfPipe
	PipelineStageAllGraphics
	PipelineStageAllCommands
)

type MemoryAccessType uint32

const AccessNone MemoryAccessType = 0

const (
	AccessIndirectCommandRead MemoryAccessType = 1 << iota
	AccessIndexRead
	AccessVertexAttributeRead
	AccessUniformRead
	AccessShaderRead
	AccessShaderWrite
	AccessColorAttachmentRead
	AccessColorAttachmentWrite
	AccessDepthStencilAttachmentRead
	AccessDepthStencilAttachmentWrite
	AccessTransferRead
	AccessTransferWrite
	AccessHostRead
	AccessHostWrite
	AccessMemoryRead
	AccessMemoryWrite
)

type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 1 << iota
	BufferUsageTransferDst
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageIndex
	BufferUsageVertex
	BufferUsageIndirect
	// BufferUsageShaderDeviceAddress marks a buffer eligible for
	// vkGetBufferDeviceAddress; the descriptor cache's BDA table requires
	// every bindless buffer carry this bit.
	BufferUsageShaderDeviceAddress
)

type ImageUsage uint32

const (
	ImageUsageTransferSrc ImageUsage = 1 << iota
	ImageUsageTransferDst
	ImageUsageSampled
	ImageUsageStorage
	ImageUsageColorAttachment
	ImageUsageDepthStencilAttachment
	ImageUsageTransientAttachment
	ImageUsageInputAttachment
)

// MemoryUsage bounds how a Buffer/Image's backing MemoryBlock is selected
// and mapped.
type MemoryUsage uint32

const (
	// MemoryUsageBestFit lets the allocator pick the cheapest memory type
	// satisfying the resource's required property flags (the default path).
	MemoryUsageBestFit MemoryUsage = 1 << iota
	// MemoryUsageCanAlias marks the allocation as shareable by more than one
	// Buffer/Image aliasing the same MemoryBlock.
	MemoryUsageCanAlias
	// MemoryUsageHostWritable requires HOST_VISIBLE|HOST_COHERENT memory so
	// Buffer.Write/Data are usable.
	MemoryUsageHostWritable
	// MemoryUsageHostTransferable additionally requires HOST_CACHED, for
	// resources primarily read back on the CPU (download staging).
	MemoryUsageHostTransferable
	// MemoryUsageDedicated names a dedicated (non-suballocated) memory
	// object. CreateBuffer/CreateImage do not read this bit: every
	// allocation is sub-allocated from a shared chunk.
	MemoryUsageDedicated
)

// Has reports whether all bits in mask are set in f.
func (f MemoryUsage) Has(mask MemoryUsage) bool { return f&mask == mask }

type ImageLayout uint32

const (
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutGeneral
	ImageLayoutColorAttachmentOptimal
	ImageLayoutDepthStencilAttachmentOptimal
	ImageLayoutDepthStencilReadOnlyOptimal
	ImageLayoutShaderReadOnlyOptimal
	ImageLayoutTransferSrcOptimal
	ImageLayoutTransferDstOptimal
	ImageLayoutPresentSrc
)

// DescriptorType enumerates the four bindless table slots the descriptor
// cache exposes: storage images, combined image samplers, sampled images,
// and samplers. Storage buffers are addressed through the BDA table instead
// of a bound descriptor slot.
type DescriptorType uint32

const (
	DescriptorTypeStorageImage DescriptorType = iota
	DescriptorTypeCombinedImageSampler
	DescriptorTypeSampledImage
	DescriptorTypeSampler
)

// Has reports whether all bits in mask are set in f.
func (f PipelineStage) Has(mask PipelineStage) bool       { return f&mask == mask }
func (f MemoryAccessType) Has(mask MemoryAccessType) bool { return f&mask == mask }
func (f BufferUsage) Has(mask BufferUsage) bool           { return f&mask == mask }
func (f ImageUsage) Has(mask ImageUsage) bool             { return f&mask == mask }
