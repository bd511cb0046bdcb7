// SPDX-License-Identifier: MPL-2.0

package macro

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"

	"github.com/pkgsmith/pkgsmith/internal/issue"
	"github.com/pkgsmith/pkgsmith/pkg/project"
)

// shortHashLen matches `git rev-parse --short` on small repositories.
const shortHashLen = 7

// MetadataFields returns the metadata keys available to ${<field>} tokens.
// Optional fields that are empty are omitted so their tokens stay verbatim.
func MetadataFields(m project.Metadata) map[string]string {
	fields := map[string]string{
		"name":         m.Name,
		"product_name": m.ProductName,
		"app_id":       m.AppID,
		"description":  m.Description,
		"homepage":     m.Homepage,
		"author":       m.Author,
		"version":      m.Version,
		"build_id":     m.BuildID,
		"license":      m.License,
		"workdir":      m.Workdir,
		"src_dir":      m.SrcDir,
	}
	optional := map[string]string{
		"copyright":    m.Copyright,
		"company":      m.Company,
		"license_file": m.LicenseFile,
	}
	for k, v := range optional {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}

// ContextFor builds the expansion context of one artifact.
func ContextFor(m project.Metadata, ctx Context) Context {
	ctx.Fields = MetadataFields(m)
	return ctx
}

// RepoGitHash returns a GitHashFunc reading HEAD of the repository that
// contains dir, searching parent directories for .git.
func RepoGitHash(dir string) GitHashFunc {
	return func() (string, error) {
		repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
		if err != nil {
			if errors.Is(err, git.ErrRepositoryNotExists) {
				return "", issue.Errorf(issue.KindGitHash, dir, "not inside a git repository")
			}
			return "", issue.New(issue.KindGitHash, dir, err)
		}
		head, err := repo.Head()
		if err != nil {
			return "", issue.New(issue.KindGitHash, dir, fmt.Errorf("reading HEAD: %w", err))
		}
		return head.Hash().String()[:shortHashLen], nil
	}
}
