// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package ic

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/aviate-labs/agent-go/candid/idl"
	"github.com/aviate-labs/agent-go/principal"
	"github.com/aviate-labs/leb128"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/socialfi/rebot/internal/app/identity"
)

// The agent library signs its envelopes with the caller's key directly
// and has no slot for a delegation chain, so delegated calls are sealed
// here by hand: same content hashing and cbor envelope the replica
// expects, plus the sender_delegation field carrying the grant.

const requestDomain = "\x0Aic-request"

// cborSelfDescribed is the tag the replica requires in front of every
// request body.
var cborSelfDescribed = []byte{0xd9, 0xd9, 0xf7}

const (
	ingressExpiryWindow = 4 * time.Minute
	callPollInterval    = time.Second
	callPollTimeout     = 60 * time.Second
)

type wireContent struct {
	RequestType   string     `cbor:"request_type"`
	Sender        []byte     `cbor:"sender"`
	Nonce         []byte     `cbor:"nonce,omitempty"`
	IngressExpiry uint64     `cbor:"ingress_expiry"`
	CanisterID    []byte     `cbor:"canister_id,omitempty"`
	MethodName    string     `cbor:"method_name,omitempty"`
	Arg           []byte     `cbor:"arg,omitempty"`
	Paths         [][][]byte `cbor:"paths,omitempty"`
}

type wireDelegation struct {
	Pubkey     []byte   `cbor:"pubkey"`
	Expiration uint64   `cbor:"expiration"`
	Targets    [][]byte `cbor:"targets"`
}

type wireSignedDelegation struct {
	Delegation wireDelegation `cbor:"delegation"`
	Signature  []byte         `cbor:"signature"`
}

type wireEnvelope struct {
	Content          wireContent            `cbor:"content"`
	SenderPubkey     []byte                 `cbor:"sender_pubkey"`
	SenderSig        []byte                 `cbor:"sender_sig"`
	SenderDelegation []wireSignedDelegation `cbor:"sender_delegation,omitempty"`
}

// requestID is the representation-independent hash of the content map:
// sha256 over the sorted concatenation of (sha256(key), sha256(value))
// pairs, with nats leb128-encoded and absent fields left out.
func (c *wireContent) requestID() ([]byte, error) {
	var pairs [][]byte
	add := func(name string, valueHash []byte) {
		n := sha256.Sum256([]byte(name))
		pairs = append(pairs, append(n[:], valueHash...))
	}
	add("request_type", hashBytes([]byte(c.RequestType)))
	add("sender", hashBytes(c.Sender))
	expiry, err := leb128.EncodeUnsigned(new(big.Int).SetUint64(c.IngressExpiry))
	if err != nil {
		return nil, err
	}
	add("ingress_expiry", hashBytes(expiry))
	if c.Nonce != nil {
		add("nonce", hashBytes(c.Nonce))
	}
	if c.CanisterID != nil {
		add("canister_id", hashBytes(c.CanisterID))
	}
	if c.MethodName != "" {
		add("method_name", hashBytes([]byte(c.MethodName)))
	}
	if c.Arg != nil {
		add("arg", hashBytes(c.Arg))
	}
	if c.Paths != nil {
		add("paths", hashPaths(c.Paths))
	}
	sort.Slice(pairs, func(a, b int) bool { return bytes.Compare(pairs[a], pairs[b]) < 0 })
	return hashBytes(bytes.Join(pairs, nil)), nil
}

func hashBytes(b []byte) []byte {
	h := sha256.Sum256(b)
	return h[:]
}

// a path hashes as the hash of its segment hashes, the path list as the
// hash of its path hashes
func hashPaths(paths [][][]byte) []byte {
	outer := sha256.New()
	for _, path := range paths {
		inner := sha256.New()
		for _, segment := range path {
			inner.Write(hashBytes(segment))
		}
		outer.Write(inner.Sum(nil))
	}
	return outer.Sum(nil)
}

// delegatedAgent sends as the delegating user while signing with the
// gateway key, attaching the grant so the replica accepts the pair.
type delegatedAgent struct {
	client  *http.Client
	replica *url.URL
	id      *identity.DelegationIdentity
}

func (d *Dialer) dialDelegated(id *identity.DelegationIdentity) *delegatedAgent {
	return &delegatedAgent{
		client:  &http.Client{Timeout: 30 * time.Second},
		replica: d.replica,
		id:      id,
	}
}

// seal hashes the content, signs it under the request domain separator
// and wraps everything into the self-described cbor envelope.
func (d *delegatedAgent) seal(content wireContent) ([]byte, []byte, error) {
	rid, err := content.requestID()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to hash request content")
	}
	sig := d.id.Sign(append([]byte(requestDomain), rid...))

	grant := d.id.Grant()
	chain := make([]wireSignedDelegation, 0, len(grant.Chain))
	for _, signed := range grant.Chain {
		targets := make([][]byte, 0, len(signed.Delegation.Targets))
		for _, t := range signed.Delegation.Targets {
			targets = append(targets, t.Raw)
		}
		chain = append(chain, wireSignedDelegation{
			Delegation: wireDelegation{
				Pubkey:     signed.Delegation.PublicKey,
				Expiration: signed.Delegation.Expiration,
				Targets:    targets,
			},
			Signature: signed.Signature,
		})
	}

	body, err := cbor.Marshal(wireEnvelope{
		Content:          content,
		SenderPubkey:     d.id.PublicKey(),
		SenderSig:        sig,
		SenderDelegation: chain,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to encode request envelope")
	}
	return append(append([]byte{}, cborSelfDescribed...), body...), rid, nil
}

func (d *delegatedAgent) post(ctx context.Context, canister principal.Principal, endpoint string, body []byte) (int, []byte, error) {
	u := *d.replica
	u.Path = "/api/v2/canister/" + canister.String() + "/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to build replica request")
	}
	req.Header.Set("Content-Type", "application/cbor")
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "replica %s request failed", endpoint)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, errors.Wrapf(err, "failed to read replica %s response", endpoint)
	}
	return resp.StatusCode, data, nil
}

type queryResponse struct {
	Status string `cbor:"status"`
	Reply  struct {
		Arg []byte `cbor:"arg"`
	} `cbor:"reply"`
	RejectCode    uint64 `cbor:"reject_code"`
	RejectMessage string `cbor:"reject_message"`
}

func (d *delegatedAgent) Query(ctx context.Context, canister principal.Principal, method string, args []any, results []any) error {
	arg, err := idl.Marshal(args)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s args", method)
	}
	body, _, err := d.seal(wireContent{
		RequestType:   "query",
		Sender:        d.id.Sender().Raw,
		IngressExpiry: ingressExpiry(),
		CanisterID:    canister.Raw,
		MethodName:    method,
		Arg:           arg,
	})
	if err != nil {
		return err
	}
	code, data, err := d.post(ctx, canister, "query", body)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return errors.Errorf("replica rejected %s query: status %d: %s", method, code, data)
	}
	var resp queryResponse
	if err := cbor.Unmarshal(stripSelfDescribed(data), &resp); err != nil {
		return errors.Wrapf(err, "failed to decode %s query response", method)
	}
	if resp.Status != "replied" {
		return errors.Errorf("%s query rejected: code %d: %s", method, resp.RejectCode, resp.RejectMessage)
	}
	return idl.Unmarshal(resp.Reply.Arg, results)
}

func (d *delegatedAgent) Call(ctx context.Context, canister principal.Principal, method string, args []any, results []any) error {
	arg, err := idl.Marshal(args)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s args", method)
	}
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return errors.Wrap(err, "failed to generate nonce")
	}
	body, rid, err := d.seal(wireContent{
		RequestType:   "call",
		Sender:        d.id.Sender().Raw,
		Nonce:         nonce,
		IngressExpiry: ingressExpiry(),
		CanisterID:    canister.Raw,
		MethodName:    method,
		Arg:           arg,
	})
	if err != nil {
		return err
	}
	code, data, err := d.post(ctx, canister, "call", body)
	if err != nil {
		return err
	}
	if code != http.StatusAccepted && code != http.StatusOK {
		return errors.Errorf("replica rejected %s call: status %d: %s", method, code, data)
	}
	reply, err := d.awaitCall(ctx, canister, method, rid)
	if err != nil {
		return err
	}
	return idl.Unmarshal(reply, results)
}

// awaitCall polls read_state until the request leaves the ingress
// pipeline one way or the other.
func (d *delegatedAgent) awaitCall(ctx context.Context, canister principal.Principal, method string, rid []byte) ([]byte, error) {
	deadline := time.Now().Add(callPollTimeout)
	for {
		status, reply, err := d.readState(ctx, canister, rid)
		if err != nil {
			return nil, err
		}
		switch status {
		case "replied":
			return reply, nil
		case "rejected":
			return nil, errors.Errorf("%s call rejected by canister", method)
		case "done":
			return nil, errors.Errorf("%s call completed but the reply is gone", method)
		}
		if time.Now().After(deadline) {
			return nil, errors.Errorf("%s call still %q after %s", method, status, callPollTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(callPollInterval):
		}
	}
}

type certificateEnvelope struct {
	Certificate []byte `cbor:"certificate"`
}

type certificate struct {
	Tree []interface{} `cbor:"tree"`
}

func (d *delegatedAgent) readState(ctx context.Context, canister principal.Principal, rid []byte) (string, []byte, error) {
	statusPath := [][]byte{[]byte("request_status"), rid}
	body, _, err := d.seal(wireContent{
		RequestType:   "read_state",
		Sender:        d.id.Sender().Raw,
		IngressExpiry: ingressExpiry(),
		Paths:         [][][]byte{statusPath},
	})
	if err != nil {
		return "", nil, err
	}
	code, data, err := d.post(ctx, canister, "read_state", body)
	if err != nil {
		return "", nil, err
	}
	if code != http.StatusOK {
		return "", nil, errors.Errorf("replica rejected read_state: status %d: %s", code, data)
	}
	var env certificateEnvelope
	if err := cbor.Unmarshal(stripSelfDescribed(data), &env); err != nil {
		return "", nil, errors.Wrap(err, "failed to decode read_state response")
	}
	var cert certificate
	if err := cbor.Unmarshal(stripSelfDescribed(env.Certificate), &cert); err != nil {
		return "", nil, errors.Wrap(err, "failed to decode state certificate")
	}
	status, ok := lookupTree(cert.Tree, append(statusPath, []byte("status")))
	if !ok {
		// not in the tree yet, the request is still being admitted
		return "unknown", nil, nil
	}
	reply, _ := lookupTree(cert.Tree, append(statusPath, []byte("reply")))
	return string(status), reply, nil
}

// lookupTree walks the certificate hash tree. Nodes are cbor arrays
// tagged 0 empty, 1 fork, 2 labeled, 3 leaf, 4 pruned.
func lookupTree(node []interface{}, path [][]byte) ([]byte, bool) {
	if len(node) == 0 {
		return nil, false
	}
	tag, ok := node[0].(uint64)
	if !ok {
		return nil, false
	}
	switch tag {
	case 1:
		for _, branch := range node[1:] {
			sub, ok := branch.([]interface{})
			if !ok {
				continue
			}
			if value, found := lookupTree(sub, path); found {
				return value, true
			}
		}
	case 2:
		if len(node) != 3 || len(path) == 0 {
			return nil, false
		}
		label, ok := node[1].([]byte)
		if !ok || !bytes.Equal(label, path[0]) {
			return nil, false
		}
		sub, ok := node[2].([]interface{})
		if !ok {
			return nil, false
		}
		return lookupTree(sub, path[1:])
	case 3:
		if len(path) == 0 && len(node) == 2 {
			value, ok := node[1].([]byte)
			return value, ok
		}
	}
	return nil, false
}

func stripSelfDescribed(data []byte) []byte {
	if bytes.HasPrefix(data, cborSelfDescribed) {
		return data[len(cborSelfDescribed):]
	}
	return data
}

func ingressExpiry() uint64 {
	return uint64(time.Now().Add(ingressExpiryWindow).UnixNano())
}
