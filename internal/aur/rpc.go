package aur

import "github.com/frederic-klein/pmt/internal/pkg"

type rpcResponse struct {
	Version     int          `json:"version"`
	Type        string       `json:"type"`
	ResultCount int          `json:"resultcount"`
	Error       string       `json:"error"`
	Results     []rpcPackage `json:"results"`
}

type rpcPackage struct {
	Name        string   `json:"Name"`
	Version     string   `json:"Version"`
	PackageBase string   `json:"PackageBase"`
	Description string   `json:"Description"`
	URL         string   `json:"URL"`
	Maintainer  string   `json:"Maintainer"`
	NumVotes    int      `json:"NumVotes"`
	OutOfDate   *int64   `json:"OutOfDate"`
	Depends     []string `json:"Depends"`
	MakeDepends []string `json:"MakeDepends"`
	OptDepends  []string `json:"OptDepends"`
	Provides    []string `json:"Provides"`
	Conflicts   []string `json:"Conflicts"`
	License     []string `json:"License"`
}

func (r rpcPackage) toPackage() *pkg.Package {
	return &pkg.Package{
		Name:        r.Name,
		Version:     r.Version,
		Base:        r.PackageBase,
		Description: r.Description,
		URL:         r.URL,
		Maintainer:  r.Maintainer,
		Votes:       r.NumVotes,
		OutOfDate:   r.OutOfDate != nil,
		Depends:     r.Depends,
		MakeDepends: r.MakeDepends,
		OptDepends:  r.OptDepends,
		Provides:    r.Provides,
		Conflicts:   r.Conflicts,
		Licenses:    r.License,
		Source:      pkg.SourceAUR,
	}
}
