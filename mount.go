package fhirfs

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/sirupsen/logrus"

	"github.com/fhirfs/fhirfs/internal/fhir"
)

// ErrCapabilityUnreachable distinguishes a failed capability fetch from
// every other mount failure, so cmd/fhirfs can report spec §6's dedicated
// exit code 2 ("capability-statement unreachable, for networked mounts").
var ErrCapabilityUnreachable = fmt.Errorf("fhirfs: capability statement unreachable")

// Mount validates opts, fetches (or synthesizes, if offline) the resource
// type catalog, and attaches the filesystem at opts.Mountpoint.
//
// Grounded on _examples/absfs-fusefs/mount.go's Mount/fs.Mount wiring,
// replacing the wrapped absfs.FileSystem with a fhir.Client built from
// opts.FHIRBaseURL and adding the capability-discovery step spec §4.7
// requires before the mount is usable.
func Mount(opts *MountOptions, log *logrus.Entry) (*FhirFS, error) {
	if opts == nil {
		return nil, fmt.Errorf("fhirfs: mount options cannot be nil")
	}
	if opts.Mountpoint == "" {
		return nil, fmt.Errorf("fhirfs: mountpoint cannot be empty")
	}

	if err := os.MkdirAll(opts.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("fhirfs: create mountpoint: %w", err)
	}
	entries, err := os.ReadDir(opts.Mountpoint)
	if err != nil {
		return nil, fmt.Errorf("fhirfs: read mountpoint: %w", err)
	}
	if len(entries) > 0 {
		return nil, fmt.Errorf("fhirfs: mountpoint is not empty")
	}

	if log == nil {
		logger := logrus.New()
		log = logger.WithField("component", "fhirfs")
	}

	var (
		client  *fhir.Client
		capView *CapabilityView
	)

	if opts.Offline {
		capView = NewOfflineCapabilityView(nil)
		client = fhir.New(opts.FHIRBaseURL, opts.HTTPTimeout, log.WithField("subcomponent", "fhir"))
	} else {
		var transport http.RoundTripper
		if opts.InsecureSkipVerify {
			transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
		}
		client = fhir.NewWithTransport(opts.FHIRBaseURL, opts.HTTPTimeout, transport, log.WithField("subcomponent", "fhir"))
		capView = NewCapabilityView(client.Capability, opts.CapabilityCacheTTL)

		ctx, cancel := context.WithTimeout(context.Background(), opts.HTTPTimeout)
		defer cancel()
		if err := capView.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCapabilityUnreachable, err)
		}
	}
	client.SetMaxPages(opts.MaxSearchPages)

	fsys := newFhirFS(client, capView, opts, log)

	fuseOpts := &fs.Options{
		MountOptions: fuse.MountOptions{
			Name:          opts.FSName,
			FsName:        opts.FSName,
			Debug:         opts.Debug,
			AllowOther:    opts.AllowOther,
			MaxBackground: 12,
		},
		AttrTimeout:  &opts.AttrTimeout,
		EntryTimeout: &opts.EntryTimeout,
	}
	if opts.ReadOnly {
		fuseOpts.MountOptions.Options = append(fuseOpts.MountOptions.Options, "ro")
	}
	if opts.DefaultPermissions {
		fuseOpts.MountOptions.Options = append(fuseOpts.MountOptions.Options, "default_permissions")
	}

	server, err := fs.Mount(opts.Mountpoint, fsys.root, fuseOpts)
	if err != nil {
		return nil, fmt.Errorf("fhirfs: mount filesystem: %w", err)
	}
	fsys.server = server

	log.WithFields(logrus.Fields{
		"mountpoint": opts.Mountpoint,
		"base_url":   opts.FHIRBaseURL,
		"offline":    opts.Offline,
	}).Info("mounted")

	return fsys, nil
}

// Unmount stops accepting new operations, closes all open handles, and
// detaches from the kernel. The caches are not cleared.
func (f *FhirFS) Unmount() error {
	f.unmounting.Store(true)
	f.handles.CloseAll()

	if f.server != nil {
		return f.server.Unmount()
	}
	return nil
}

// Wait blocks until the filesystem is unmounted.
func (f *FhirFS) Wait() error {
	if f.server == nil {
		return fmt.Errorf("fhirfs: filesystem not mounted")
	}
	f.server.Wait()
	return nil
}

// MountAndWait mounts and blocks until unmount, for the common CLI case.
func MountAndWait(opts *MountOptions, log *logrus.Entry) error {
	fsys, err := Mount(opts, log)
	if err != nil {
		return err
	}
	return fsys.Wait()
}
