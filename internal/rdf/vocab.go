package rdf

// Namespaces of the vocabularies semdesk writes.
const (
	NSRDF = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NSXSD = "http://www.w3.org/2001/XMLSchema#"
	NSNRL = "http://www.semanticdesktop.org/ontologies/2007/08/15/nrl#"
	NSNIE = "http://www.semanticdesktop.org/ontologies/2007/01/19/nie#"
	NSNFO = "http://www.semanticdesktop.org/ontologies/2007/03/22/nfo#"
	NSNAO = "http://www.semanticdesktop.org/ontologies/2007/08/15/nao#"
)

// XSD datatypes.
const (
	XSDString   = NSXSD + "string"
	XSDDateTime = NSXSD + "dateTime"
	XSDLong     = NSXSD + "long"
)

var (
	RDFType = URI(NSRDF + "type")

	// NRL: graph roles.
	NRLInstanceBase         = URI(NSNRL + "InstanceBase")
	NRLGraphMetadata        = URI(NSNRL + "GraphMetadata")
	NRLCoreGraphMetadataFor = URI(NSNRL + "coreGraphMetadataFor")

	// NIE: information elements.
	NIEURL              = URI(NSNIE + "url")
	NIELastModified     = URI(NSNIE + "lastModified")
	NIEMimeType         = URI(NSNIE + "mimeType")
	NIEPlainTextContent = URI(NSNIE + "plainTextContent")
	NIEIsPartOf         = URI(NSNIE + "isPartOf")

	// NFO: file objects.
	NFOFileDataObject = URI(NSNFO + "FileDataObject")
	NFOFolder         = URI(NSNFO + "Folder")
	NFOFileName       = URI(NSNFO + "fileName")
	NFOFileSize       = URI(NSNFO + "fileSize")

	// NAO: annotations.
	NAOCreated = URI(NSNAO + "created")
)

var prefixes = []struct{ prefix, ns string }{
	{"rdf:", NSRDF},
	{"xsd:", NSXSD},
	{"nrl:", NSNRL},
	{"nie:", NSNIE},
	{"nfo:", NSNFO},
	{"nao:", NSNAO},
}

// Compact shortens a URI with a known namespace to prefix form
// ("nie:url"); other values are returned unchanged.
func Compact(uri string) string {
	for _, p := range prefixes {
		if len(uri) > len(p.ns) && uri[:len(p.ns)] == p.ns {
			return p.prefix + uri[len(p.ns):]
		}
	}
	return uri
}

// Expand is the inverse of Compact.
func Expand(name string) string {
	for _, p := range prefixes {
		if len(name) > len(p.prefix) && name[:len(p.prefix)] == p.prefix {
			return p.ns + name[len(p.prefix):]
		}
	}
	return name
}
