package server

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/racs-io/racs/internal/erasure"
	"github.com/racs-io/racs/internal/fanout"
	"github.com/racs-io/racs/internal/repository"
	racserr "github.com/racs-io/racs/pkg/errors"
)

const s3FQDN = "s3.amazonaws.com"

// adminBucket routes /racs to the admin surface instead of object storage.
const adminBucket = "racs"

// ServeHTTP dispatches one S3-dialect request.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bucket, key := resolveResource(r)

	if bucket == adminBucket {
		s.handleAdmin(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.doGet(w, r, bucket, key)
	case http.MethodPut:
		s.doPut(w, r, bucket, key)
	case http.MethodDelete:
		s.doDelete(w, r, bucket, key)
	case http.MethodHead:
		s.doHead(w, r, bucket, key)
	default:
		s.sendStatus(w, http.StatusNotImplemented)
	}
}

// resolveResource extracts (bucket, key) from a virtual-hosted or
// path-style URL.
func resolveResource(r *http.Request) (bucket, key string) {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	path := strings.TrimPrefix(r.URL.Path, "/")

	if suffix := "." + s3FQDN; strings.HasSuffix(host, suffix) {
		bucket = strings.TrimSuffix(host, suffix)
		return bucket, path
	}

	parts := strings.SplitN(path, "/", 2)
	bucket = parts[0]
	if len(parts) == 2 {
		key = parts[1]
	}
	return bucket, key
}

func (s *Server) doGet(w http.ResponseWriter, r *http.Request, bucket, key string) {
	query := r.URL.Query()
	switch {
	case bucket == "":
		s.handleListBuckets(w, r)
	case key == "":
		if query.Has("location") {
			s.sendXML(w, &LocationConstraint{Ns: s3Namespace})
			return
		}
		s.handleListBucket(w, r, bucket)
	case query.Has("acl"):
		s.sendXML(w, NewAccessControlPolicy())
	default:
		for _, h := range []string{"If-Modified-Since", "If-Unmodified-Since", "If-Match", "If-None-Match"} {
			if r.Header.Get(h) != "" {
				s.notImplemented(w, "conditional GET header "+h)
				return
			}
		}
		s.handleGetObject(w, r, bucket, key)
	}
}

func (s *Server) doPut(w http.ResponseWriter, r *http.Request, bucket, key string) {
	query := r.URL.Query()
	switch {
	case query.Has("requestPayment"):
		s.notImplemented(w, "requestPayment")
	case query.Has("acl"):
		s.notImplemented(w, "acl write")
	case bucket == "":
		s.sendStatus(w, http.StatusBadRequest)
	case key == "":
		s.handleCreateBucket(w, r, bucket)
	case r.Header.Get("x-amz-copy-source") != "":
		s.notImplemented(w, "server-side copy")
	case r.Header.Get("Cache-Control") != "":
		s.notImplemented(w, "Cache-Control")
	default:
		s.handlePutObject(w, r, bucket, key)
	}
}

func (s *Server) doDelete(w http.ResponseWriter, r *http.Request, bucket, key string) {
	switch {
	case bucket == "":
		s.sendStatus(w, http.StatusBadRequest)
	case key == "":
		s.handleDeleteBucket(w, r, bucket)
	default:
		s.handleDeleteObject(w, r, bucket, key)
	}
}

func (s *Server) doHead(w http.ResponseWriter, r *http.Request, bucket, key string) {
	if bucket == "" || key == "" {
		s.sendStatus(w, http.StatusBadRequest)
		return
	}
	s.handleHeadObject(w, r, bucket, key)
}

// ---- bucket verbs ----------------------------------------------------

func (s *Server) handleCreateBucket(w http.ResponseWriter, r *http.Request, bucket string) {
	start := time.Now()
	repos := s.manager.Active()

	outcome := fanout.Run(r.Context(), s.exec, fanout.Spec[*repository.Handle, struct{}]{
		Params: repos,
		Worker: func(ctx context.Context, h *repository.Handle) (struct{}, error) {
			return struct{}{}, h.CreateBucket(ctx, bucket)
		},
		AbortOnError: true,
		OnSuccess:    func(h *repository.Handle, _ struct{}) { s.stats.RecordRepositoryCall(h.Name(), nil) },
		OnFailure:    func(h *repository.Handle, err error) { s.stats.RecordRepositoryCall(h.Name(), err) },
		Rollback: func(h *repository.Handle, _ struct{}) {
			if err := h.DeleteBucket(context.Background(), bucket); err != nil {
				s.log.Warn("create bucket rollback failed", "repository", h.Name(), "bucket", bucket, "error", err)
			}
		},
	})

	if !outcome.Quorum {
		s.failWith(w, outcome.FirstError())
		s.stats.RecordOperation("racs:create_bucket", time.Since(start), 0, outcome.FirstError())
		return
	}
	s.sendStatus(w, http.StatusOK)
	s.stats.RecordOperation("racs:create_bucket", time.Since(start), 0, nil)
}

func (s *Server) handleDeleteBucket(w http.ResponseWriter, r *http.Request, bucket string) {
	start := time.Now()
	repos := s.manager.Active()

	// No rollback: a deleted bucket cannot be restored safely.
	outcome := fanout.Run(r.Context(), s.exec, fanout.Spec[*repository.Handle, struct{}]{
		Params: repos,
		Worker: func(ctx context.Context, h *repository.Handle) (struct{}, error) {
			return struct{}{}, h.DeleteBucket(ctx, bucket)
		},
		OnSuccess: func(h *repository.Handle, _ struct{}) { s.stats.RecordRepositoryCall(h.Name(), nil) },
		OnFailure: func(h *repository.Handle, err error) { s.stats.RecordRepositoryCall(h.Name(), err) },
	})

	if !outcome.Quorum {
		s.failWith(w, outcome.FirstError())
		s.stats.RecordOperation("racs:delete_bucket", time.Since(start), 0, outcome.FirstError())
		return
	}
	s.sendStatus(w, http.StatusOK)
	s.stats.RecordOperation("racs:delete_bucket", time.Since(start), 0, nil)
}

func (s *Server) handleListBuckets(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if s.cfg.RACS.VerifyListingsConsistent {
		s.notImplemented(w, "verify_listings_consistent")
		return
	}
	repos := s.manager.ByPriority()
	if len(repos) == 0 {
		s.sendStatus(w, http.StatusInternalServerError)
		return
	}

	outcome := fanout.Run(r.Context(), s.exec, fanout.Spec[*repository.Handle, []string]{
		Params: repos,
		Worker: func(ctx context.Context, h *repository.Handle) ([]string, error) {
			return h.ListBuckets(ctx)
		},
		Quorum:      1,
		NConcurrent: 1,
	})
	if !outcome.Quorum {
		s.failWith(w, outcome.FirstError())
		s.stats.RecordOperation("racs:get_all_buckets", time.Since(start), 0, outcome.FirstError())
		return
	}
	var buckets []string
	for _, b := range outcome.Results {
		buckets = b
		break
	}
	s.sendXML(w, NewListAllMyBucketsResult(buckets))
	s.stats.RecordOperation("racs:get_all_buckets", time.Since(start), 0, nil)
}

func (s *Server) handleListBucket(w http.ResponseWriter, r *http.Request, bucket string) {
	start := time.Now()
	if s.cfg.RACS.VerifyListingsConsistent {
		s.notImplemented(w, "verify_listings_consistent")
		return
	}
	query := r.URL.Query()
	opts := repository.ListOptions{
		Prefix:    query.Get("prefix"),
		Marker:    query.Get("marker"),
		Delimiter: query.Get("delimiter"),
	}
	if mk := query.Get("max-keys"); mk != "" {
		n, err := strconv.Atoi(mk)
		if err != nil || n < 0 {
			s.sendStatus(w, http.StatusBadRequest)
			return
		}
		opts.MaxKeys = n
	}

	repos := s.manager.ByPriority()
	outcome := fanout.Run(r.Context(), s.exec, fanout.Spec[*repository.Handle, *repository.Listing]{
		Params: repos,
		Worker: func(ctx context.Context, h *repository.Handle) (*repository.Listing, error) {
			return h.ListBucket(ctx, bucket, opts)
		},
		Quorum:      1,
		NConcurrent: 1,
	})
	if !outcome.Quorum {
		s.failWith(w, outcome.FirstError())
		s.stats.RecordOperation("racs:get_bucket_contents", time.Since(start), 0, outcome.FirstError())
		return
	}

	var listing *repository.Listing
	for _, l := range outcome.Results {
		listing = l
		break
	}
	contents := s.enrichListing(r.Context(), bucket, listing)

	result := &ListBucketResult{
		Ns:          s3Namespace,
		Name:        bucket,
		Prefix:      opts.Prefix,
		Marker:      opts.Marker,
		MaxKeys:     opts.MaxKeys,
		Delimiter:   opts.Delimiter,
		IsTruncated: listing.IsTruncated,
		Contents:    contents,
	}
	for _, p := range listing.CommonPrefixes {
		result.CommonPrefixes = append(result.CommonPrefixes, CommonPrefix{Prefix: p})
	}
	s.sendXML(w, result)
	s.stats.RecordOperation("racs:get_bucket_contents", time.Since(start), 0, nil)
}

// enrichListing rewrites backend share sizes and etags into logical object
// attributes. Entries whose listing already carried the share binding are
// rewritten in place; the rest need one HEAD each, which runs through the
// HEAD cache and as a parallel fan-out rather than serially.
func (s *Server) enrichListing(ctx context.Context, bucket string, listing *repository.Listing) []ObjectInfo {
	contents := make([]ObjectInfo, len(listing.Entries))
	var missing []int
	for i, entry := range listing.Entries {
		contents[i] = ObjectInfo{
			Key:          entry.Key,
			LastModified: FormatTimestamp(entry.LastModified),
			ETag:         entry.ETag,
			Size:         entry.Size,
			Owner:        nobody,
			StorageClass: "STANDARD",
		}
		if raw, ok := entry.UserMeta[erasure.MetaKey]; ok {
			if meta, err := erasure.ParseMeta(raw); err == nil {
				contents[i].ETag = meta.ETag()
				contents[i].Size = int64(meta.Size)
				continue
			}
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return contents
	}

	done := make(chan struct{})
	fanout.Run(ctx, s.exec, fanout.Spec[int, struct{}]{
		Params: missing,
		Worker: func(ctx context.Context, i int) (struct{}, error) {
			headers, err := s.cachedHead(ctx, bucket, listing.Entries[i].Key)
			if err != nil {
				return struct{}{}, err
			}
			meta, err := erasure.ParseMeta(headers[erasure.MetaKey])
			if err != nil {
				return struct{}{}, err
			}
			contents[i].ETag = meta.ETag()
			contents[i].Size = int64(meta.Size)
			return struct{}{}, nil
		},
		OnFailure: func(i int, err error) {
			s.log.Warn("listing enrichment failed", "bucket", bucket, "key", listing.Entries[i].Key, "error", err)
		},
		OnTerminated: func() { close(done) },
	})
	// Run resolves at quorum, but stragglers may still be writing their
	// slots; the XML marshal below must not race them.
	<-done
	return contents
}

// cachedHead answers a HEAD from the cache or the highest-priority
// repository, populating the cache on the way.
func (s *Server) cachedHead(ctx context.Context, bucket, key string) (map[string]string, error) {
	if headers, ok := s.heads.Get(bucket, key); ok {
		return headers, nil
	}
	repos := s.manager.ByPriority()
	if len(repos) == 0 {
		return nil, racserr.New(racserr.CodeQuorumUnreachable, "no active repositories")
	}
	headers, err := repos[0].Head(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	s.heads.Put(bucket, key, headers)
	return headers, nil
}

// ---- object verbs ----------------------------------------------------

type putTask struct {
	repo  *repository.Handle
	index int
}

func (s *Server) handlePutObject(w http.ResponseWriter, r *http.Request, bucket, key string) {
	start := time.Now()

	if r.ContentLength < 0 {
		s.sendStatus(w, http.StatusLengthRequired)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, r.ContentLength))
	if err != nil || int64(len(body)) != r.ContentLength {
		s.sendStatus(w, http.StatusBadRequest)
		return
	}

	if contentMD5 := r.Header.Get("Content-MD5"); contentMD5 != "" {
		sum := md5.Sum(body)
		if base64.StdEncoding.EncodeToString(sum[:]) != contentMD5 {
			s.log.Warn("content-md5 mismatch", "bucket", bucket, "key", key)
			s.failWith(w, racserr.New(racserr.CodeBadDigest, "Content-MD5 does not match body"))
			return
		}
	}
	if acl := r.Header.Get("x-amz-acl"); acl != "" {
		s.log.Warn("ignoring x-amz-acl; ACLs are not implemented", "acl", acl)
	}

	shares, meta, err := s.codec.Encode(body)
	if err != nil {
		s.failWith(w, err)
		return
	}

	userMeta := extractUserMeta(r.Header)
	userMeta[erasure.MetaKey] = meta.String()
	contentType := r.Header.Get("Content-Type")

	// One share per repository, bound by share index. Admin reactivation
	// can leave more active repositories than shares; the surplus is not
	// written.
	repos := s.manager.Active()
	if len(repos) > len(shares) {
		repos = repos[:len(shares)]
	}
	tasks := make([]putTask, len(repos))
	for i, h := range repos {
		tasks[i] = putTask{repo: h, index: i}
	}

	release := s.coord.AcquireWrite(r.Context(), bucket, key)
	defer release()
	s.heads.Invalidate(bucket, key)

	outcome := fanout.Run(r.Context(), s.exec, fanout.Spec[putTask, struct{}]{
		Params: tasks,
		Worker: func(ctx context.Context, t putTask) (struct{}, error) {
			shareMeta := make(map[string]string, len(userMeta)+1)
			for k, v := range userMeta {
				shareMeta[k] = v
			}
			shareMeta[erasure.ShareIndexKey] = strconv.Itoa(t.index)
			return struct{}{}, t.repo.PutObject(ctx, bucket, key, shares[t.index], contentType, shareMeta)
		},
		AbortOnError: true,
		OnSuccess:    func(t putTask, _ struct{}) { s.stats.RecordRepositoryCall(t.repo.Name(), nil) },
		OnFailure:    func(t putTask, err error) { s.stats.RecordRepositoryCall(t.repo.Name(), err) },
		// Best-effort undo keeps a failed PUT from leaving partial share
		// sets behind; a share that outlives its rollback is cleaned by
		// the next successful PUT or DELETE.
		Rollback: func(t putTask, _ struct{}) {
			if err := t.repo.DeleteObject(context.Background(), bucket, key); err != nil {
				s.log.Warn("put rollback failed", "repository", t.repo.Name(), "bucket", bucket, "key", key, "error", err)
			}
		},
	})

	if !outcome.Quorum {
		s.failWith(w, outcome.FirstError())
		s.stats.RecordOperation("racs:put_object", time.Since(start), int64(len(body)), outcome.FirstError())
		return
	}
	s.setIDHeaders(w)
	w.Header().Set("ETag", meta.ETag())
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusOK)
	s.stats.RecordOperation("racs:put_object", time.Since(start), int64(len(body)), nil)
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request, bucket, key string) {
	start := time.Now()

	repos := chooseRepositories(s.manager)
	k := s.codec.K()
	if len(repos) < k {
		s.failWith(w, racserr.New(racserr.CodeQuorumUnreachable,
			"%d active repositories cannot supply %d shares", len(repos), k))
		return
	}

	release := s.coord.AcquireRead(r.Context(), bucket, key)
	outcome := fanout.Run(r.Context(), s.exec, fanout.Spec[*repository.Handle, *repository.Object]{
		Params: repos,
		Worker: func(ctx context.Context, h *repository.Handle) (*repository.Object, error) {
			return h.GetObject(ctx, bucket, key)
		},
		Quorum:      k,
		NConcurrent: readConcurrency(s.cfg.RACS.ReadPolicy, len(repos), k),
		OnSuccess:   func(h *repository.Handle, _ *repository.Object) { s.stats.RecordRepositoryCall(h.Name(), nil) },
		OnFailure:   func(h *repository.Handle, err error) { s.stats.RecordRepositoryCall(h.Name(), err) },
	})
	release()

	if !outcome.Quorum {
		s.failWith(w, outcome.FirstError())
		s.stats.RecordOperation("racs:get_object", time.Since(start), 0, outcome.FirstError())
		return
	}

	data, meta, contentType, userMeta, err := s.decodeShares(outcome.Results, bucket, key)
	if err != nil {
		s.log.Error("decoding object failed", "bucket", bucket, "key", key, "error", err)
		s.failWith(w, err)
		s.stats.RecordOperation("racs:get_object", time.Since(start), 0, err)
		return
	}

	s.setIDHeaders(w)
	w.Header().Set("ETag", meta.ETag())
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	applyUserMeta(w.Header(), userMeta)

	// Range is emulated: the object is fully reconstructed, then sliced.
	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		offset, end, ok := parseRange(rangeHeader, int64(len(data)))
		if !ok {
			s.notImplemented(w, "range format "+rangeHeader)
			return
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, end, len(data)))
		data = data[offset : end+1]
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(data)
		s.stats.RecordOperation("racs:get_object", time.Since(start), int64(len(data)), nil)
		return
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	s.stats.RecordOperation("racs:get_object", time.Since(start), int64(len(data)), nil)
}

// decodeShares reassembles the payload from any k of the fetched shares.
func (s *Server) decodeShares(results map[*repository.Handle]*repository.Object, bucket, key string) ([]byte, erasure.Meta, string, map[string]string, error) {
	var (
		meta     erasure.Meta
		haveMeta bool
		first    *repository.Object
	)
	shares := make([][]byte, s.codec.M())
	for _, obj := range results {
		if first == nil {
			first = obj
		}
		raw, ok := obj.UserMeta[erasure.MetaKey]
		if !ok {
			return nil, meta, "", nil, racserr.New(racserr.CodeDecodeMismatch,
				"share for %s/%s carries no fec metadata", bucket, key)
		}
		m, err := erasure.ParseMeta(raw)
		if err != nil {
			return nil, meta, "", nil, err
		}
		if !haveMeta {
			meta, haveMeta = m, true
		} else if m != meta {
			s.log.Warn("shares disagree on fec metadata", "bucket", bucket, "key", key)
		}
		idx, err := strconv.Atoi(obj.UserMeta[erasure.ShareIndexKey])
		if err != nil || idx < 0 || idx >= len(shares) {
			return nil, meta, "", nil, racserr.New(racserr.CodeDecodeMismatch,
				"share for %s/%s carries invalid index", bucket, key)
		}
		if shares[idx] == nil {
			shares[idx] = obj.Data
		}
	}
	data, err := s.codec.Decode(shares, meta)
	if err != nil {
		return nil, meta, "", nil, err
	}
	return data, meta, first.ContentType, first.UserMeta, nil
}

func (s *Server) handleHeadObject(w http.ResponseWriter, r *http.Request, bucket, key string) {
	start := time.Now()
	repos := s.manager.ByPriority()
	if len(repos) == 0 {
		s.sendStatus(w, http.StatusInternalServerError)
		return
	}

	// Serial fall-through: ask one repository at a time, treat a missing
	// object as a successful "absent" answer so quorum=1 resolves on the
	// first responsive repository.
	outcome := fanout.Run(r.Context(), s.exec, fanout.Spec[*repository.Handle, map[string]string]{
		Params: repos,
		Worker: func(ctx context.Context, h *repository.Handle) (map[string]string, error) {
			headers, err := h.Head(ctx, bucket, key)
			if racserr.IsCode(err, racserr.CodeObjectNotFound) {
				return nil, nil
			}
			return headers, err
		},
		Quorum:      1,
		NConcurrent: 1,
	})
	if !outcome.Quorum {
		s.failWith(w, outcome.FirstError())
		s.stats.RecordOperation("racs:head", time.Since(start), 0, outcome.FirstError())
		return
	}

	var headers map[string]string
	for _, h := range outcome.Results {
		headers = h
		break
	}
	if headers == nil {
		s.sendStatus(w, http.StatusNotFound)
		s.stats.RecordOperation("racs:head", time.Since(start), 0, racserr.NotFound(bucket, key))
		return
	}

	raw, ok := headers[erasure.MetaKey]
	if !ok {
		s.sendStatus(w, http.StatusInternalServerError)
		return
	}
	meta, err := erasure.ParseMeta(raw)
	if err != nil {
		s.failWith(w, err)
		return
	}

	s.setIDHeaders(w)
	out := w.Header()
	out.Set("ETag", meta.ETag())
	out.Set("Content-Length", strconv.FormatUint(meta.Size, 10))
	for k, v := range headers {
		switch k {
		case "Content-Type", "Last-Modified":
			out.Set(k, v)
		case "Etag", "Content-Length", erasure.MetaKey, erasure.ShareIndexKey:
			// replaced or internal
		default:
			out.Set("x-amz-meta-"+k, v)
		}
	}
	w.WriteHeader(http.StatusOK)
	s.stats.RecordOperation("racs:head", time.Since(start), 0, nil)
}

func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request, bucket, key string) {
	start := time.Now()
	repos := s.manager.Active()
	s.heads.Invalidate(bucket, key)

	outcome := fanout.Run(r.Context(), s.exec, fanout.Spec[*repository.Handle, struct{}]{
		Params: repos,
		Worker: func(ctx context.Context, h *repository.Handle) (struct{}, error) {
			return struct{}{}, h.DeleteObject(ctx, bucket, key)
		},
		OnSuccess: func(h *repository.Handle, _ struct{}) { s.stats.RecordRepositoryCall(h.Name(), nil) },
		OnFailure: func(h *repository.Handle, err error) { s.stats.RecordRepositoryCall(h.Name(), err) },
	})
	if !outcome.Quorum {
		s.failWith(w, outcome.FirstError())
		s.stats.RecordOperation("racs:delete_object", time.Since(start), 0, outcome.FirstError())
		return
	}
	s.sendStatus(w, http.StatusOK)
	s.stats.RecordOperation("racs:delete_object", time.Since(start), 0, nil)
}

// ---- helpers ---------------------------------------------------------

// extractUserMeta strips the x-amz-meta- prefix from incoming headers;
// names are stored lowercase.
func extractUserMeta(h http.Header) map[string]string {
	meta := make(map[string]string)
	for name, values := range h {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "x-amz-meta-") && len(values) > 0 {
			meta[strings.TrimPrefix(lower, "x-amz-meta-")] = values[0]
		}
	}
	return meta
}

// applyUserMeta re-prefixes stored user metadata onto the response,
// holding back the reserved share-binding names.
func applyUserMeta(out http.Header, meta map[string]string) {
	for k, v := range meta {
		if k == erasure.MetaKey || k == erasure.ShareIndexKey {
			continue
		}
		out.Set("x-amz-meta-"+k, v)
	}
}

// parseRange handles the single-range "bytes=a-b" form; anything fancier
// is reported as unimplemented by the caller.
func parseRange(header string, size int64) (start, end int64, ok bool) {
	spec, found := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !found {
		return 0, 0, false
	}
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false
	}
	if strings.TrimSpace(parts[1]) == "" {
		end = size - 1
	} else {
		end, err = strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			return 0, 0, false
		}
	}
	if end >= size {
		end = size - 1
	}
	if start > end {
		return 0, 0, false
	}
	return start, end, true
}

func (s *Server) setIDHeaders(w http.ResponseWriter) {
	w.Header().Set("x-amz-id-2", newID2())
	w.Header().Set("x-amz-request-id", newRequestID())
}

func (s *Server) sendStatus(w http.ResponseWriter, status int) {
	s.setIDHeaders(w)
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(status)
}

func (s *Server) failWith(w http.ResponseWriter, err error) {
	if err == nil {
		s.sendStatus(w, http.StatusInternalServerError)
		return
	}
	s.sendStatus(w, racserr.StatusOf(err))
}

func (s *Server) notImplemented(w http.ResponseWriter, what string) {
	s.log.Error("not implemented", "feature", what)
	s.sendStatus(w, http.StatusInternalServerError)
}

func (s *Server) sendXML(w http.ResponseWriter, v interface{}) {
	body := mustMarshal(v)
	s.setIDHeaders(w)
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
