package server

import (
	"encoding/xml"
	"time"
)

// s3Namespace is the 2006-03-01 S3 document namespace.
const s3Namespace = "http://s3.amazonaws.com/doc/2006-03-01/"

// s3TimeFormat is the timestamp form S3 listings use.
const s3TimeFormat = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t the way S3 listing documents expect.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(s3TimeFormat)
}

type (
	// Owner is the placeholder object owner; RACS does not track
	// ownership.
	Owner struct {
		ID          string `xml:"ID"`
		DisplayName string `xml:"DisplayName"`
	}

	// BucketInfo is one entry of a ListAllMyBucketsResult.
	BucketInfo struct {
		Name         string `xml:"Name"`
		CreationDate string `xml:"CreationDate"`
	}

	// ListAllMyBucketsResult answers GET /.
	ListAllMyBucketsResult struct {
		XMLName xml.Name     `xml:"ListAllMyBucketsResult"`
		Ns      string       `xml:"xmlns,attr"`
		Owner   Owner        `xml:"Owner"`
		Buckets []BucketInfo `xml:"Buckets>Bucket"`
	}

	// ObjectInfo is one Contents entry of a ListBucketResult.
	ObjectInfo struct {
		Key          string `xml:"Key"`
		LastModified string `xml:"LastModified"`
		ETag         string `xml:"ETag"`
		Size         int64  `xml:"Size"`
		Owner        Owner  `xml:"Owner"`
		StorageClass string `xml:"StorageClass"`
	}

	// CommonPrefix wraps one delimiter group.
	CommonPrefix struct {
		Prefix string `xml:"Prefix"`
	}

	// ListBucketResult answers GET /<bucket>.
	ListBucketResult struct {
		XMLName        xml.Name       `xml:"ListBucketResult"`
		Ns             string         `xml:"xmlns,attr"`
		Name           string         `xml:"Name"`
		Prefix         string         `xml:"Prefix"`
		Marker         string         `xml:"Marker"`
		MaxKeys        int            `xml:"MaxKeys"`
		Delimiter      string         `xml:"Delimiter,omitempty"`
		IsTruncated    bool           `xml:"IsTruncated"`
		Contents       []ObjectInfo   `xml:"Contents"`
		CommonPrefixes []CommonPrefix `xml:"CommonPrefixes"`
	}

	// Grant and AccessControlPolicy answer GET ?acl with a fixed
	// FULL_CONTROL placeholder.
	Grant struct {
		Grantee    Owner  `xml:"Grantee"`
		Permission string `xml:"Permission"`
	}
	AccessControlPolicy struct {
		XMLName xml.Name `xml:"AccessControlPolicy"`
		Ns      string   `xml:"xmlns,attr"`
		Owner   Owner    `xml:"Owner"`
		Grants  []Grant  `xml:"AccessControlList>Grant"`
	}

	// LocationConstraint answers GET ?location.
	LocationConstraint struct {
		XMLName xml.Name `xml:"LocationConstraint"`
		Ns      string   `xml:"xmlns,attr"`
		Value   string   `xml:",chardata"`
	}
)

// nobody is the owner RACS reports everywhere.
var nobody = Owner{ID: "00001", DisplayName: "not_implemented"}

// NewListAllMyBucketsResult builds the bucket index document.
func NewListAllMyBucketsResult(buckets []string) *ListAllMyBucketsResult {
	result := &ListAllMyBucketsResult{Ns: s3Namespace, Owner: nobody}
	now := FormatTimestamp(time.Now())
	for _, name := range buckets {
		result.Buckets = append(result.Buckets, BucketInfo{Name: name, CreationDate: now})
	}
	return result
}

// NewAccessControlPolicy builds the placeholder ACL document.
func NewAccessControlPolicy() *AccessControlPolicy {
	return &AccessControlPolicy{
		Ns:     s3Namespace,
		Owner:  nobody,
		Grants: []Grant{{Grantee: nobody, Permission: "FULL_CONTROL"}},
	}
}

// mustMarshal renders an entity with the XML header; entities are built
// from internal state, so a marshal failure is a programming error.
func mustMarshal(v interface{}) []byte {
	b, err := xml.Marshal(v)
	if err != nil {
		panic(err)
	}
	return append([]byte(xml.Header), b...)
}
