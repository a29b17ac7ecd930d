// Package rdf holds the RDF value objects used to describe uploads and mapped
// BPMN content, together with their N-Triples serialization.
package rdf

// Namespaces of the vocabularies persisted by the service.
const (
	NamespaceRDF     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NamespaceXSD     = "http://www.w3.org/2001/XMLSchema#"
	NamespaceMuCore  = "http://mu.semte.ch/vocabularies/core/"
	NamespaceNFO     = "http://www.semanticdesktop.org/ontologies/2007/03/22/nfo#"
	NamespaceNIE     = "http://www.semanticdesktop.org/ontologies/2007/01/19/nie#"
	NamespaceDCT     = "http://purl.org/dc/terms/"
	NamespaceDBpedia = "http://dbpedia.org/ontology/"
)

// Predicates and classes written for upload and file resources. The lookup
// query is assembled from the same constants so the two can never drift.
const (
	RDFType = NamespaceRDF + "type"

	FileDataObject = NamespaceNFO + "FileDataObject"

	FileName      = NamespaceNFO + "fileName"
	UUID          = NamespaceMuCore + "uuid"
	Format        = NamespaceDCT + "format"
	FileSize      = NamespaceNFO + "fileSize"
	FileExtension = NamespaceDBpedia + "fileExtension"
	Created       = NamespaceDCT + "created"
	Modified      = NamespaceDCT + "modified"
	DataSource    = NamespaceNIE + "dataSource"
)

// Datatypes used for typed literals.
const (
	XSDString   = NamespaceXSD + "string"
	XSDInteger  = NamespaceXSD + "integer"
	XSDDateTime = NamespaceXSD + "dateTime"
	XSDBoolean  = NamespaceXSD + "boolean"
)

// Resource URI schemes.
const (
	UploadResourceBase = "http://mu.semte.ch/services/file-service/files/"
	FileResourceScheme = "share://"
)

// UploadResourceURI returns the deterministic URI of the upload resource with the given id.
func UploadResourceURI(uploadID string) string {
	return UploadResourceBase + uploadID
}

// FileResourceURI returns the deterministic URI of a stored file.
func FileResourceURI(fileName string) string {
	return FileResourceScheme + fileName
}
