package status

// ErrorCode is a numeric code to classify errors in a stable way
type ErrorCode int

// Reserved ranges by domain:
//   0-999:     request validation
//   1000-1999: ingestion (document, chunking)
//   2000-2999: external collaborators (embedding provider, vector store)
//   9000:      unclassified
const (
	BadRequestBase    ErrorCode = 0
	IngestBase        ErrorCode = 1000
	CollaboratorBase  ErrorCode = 2000
	ErrorCodeInternal ErrorCode = 9000
)

// Request validation errors
const (
	InvalidRequestBody ErrorCode = BadRequestBase + iota // 0
	MissingParams                                        // 1
)

// Ingestion errors
const (
	DocumentNotFound   ErrorCode = IngestBase + iota // 1000
	DocumentUnreadable                               // 1001
	NoContentExtracted                               // 1002
	Configuration                                    // 1003
)

// Collaborator errors
const (
	EmbeddingProvider ErrorCode = CollaboratorBase + iota // 2000
	VectorStore                                           // 2001
)
