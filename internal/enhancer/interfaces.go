// Package enhancer inlines external SQL and script fragments into resource
// definitions before they are sent to the remote service.
package enhancer

// Kind identifies which enhancement a resource definition receives.
type Kind string

const (
	// KindExtractor inlines extractors/sql/<queryTemplate> into queryTemplate.
	KindExtractor Kind = "extractor"
	// KindScript inlines <folder>/js/<script> into script for triggers and tasks.
	KindScript Kind = "script"
)

// Enhancer rewrites one resource definition. dir is the folder the
// definition was read from; doc is its raw JSON text. Implementations touch
// only their own field and return the re-serialized document.
type Enhancer interface {
	// Kind returns the resource kind this enhancer handles.
	Kind() Kind

	// Enhance returns doc with its fragment field inlined. A fragment file
	// that does not exist leaves the document unchanged.
	Enhance(dir string, doc []byte) ([]byte, error)
}
