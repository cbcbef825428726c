// Package domain models the weather-radar roost dataset: radar stations, volume
// scans, scan-collection windows, roost annotations and the dataset manifest.
//
// # Data Source
//
// Level II volume scans come from the public NEXRAD archive on S3. One object
// holds one volume scan and is addressed by a key derived from the scan name:
//
//	KOKX20130721_093320_V06  →  2013/07/21/KOKX/KOKX20130721_093320_V06.gz
//
// The key is built by fixed character offsets: station = [0:4], year = [4:8],
// month = [8:10], day = [10:12]. See [DeriveKey].
//
// # Scan Names
//
//	STATION YYYYMMDD _ HHMMSS _V NN [.gz|.Z]
//
// Station codes are four uppercase letters (ICAO). The volume suffix is absent
// from some pre-2008 scans (e.g. KTBW20031123_115217); those names are accepted.
// Compression suffixes are stripped before a name is used as a map key.
//
// # Collection Window
//
// Roosts are visible as birds and bats disperse at sunrise, so scans are
// collected from 30 minutes before local sunrise to 180 minutes after it. The
// window is anchored to the sunrise of the requested date only; sunset does
// not bound it. See [ScanWindow].
//
// # Image Geometry
//
// Rendered arrays are dim×dim Cartesian grids covering [-r_max, r_max] meters
// in both axes with the radar at the centre. Annotations arrive as circles in
// radar-centred meters (x east, y north) and map to pixels by
//
//	x_im = (x + r_max) * dim / (2 * r_max)
//	r_im = r * dim / (2 * r_max)
//
// Annotator boxes are normalised to a canonical size with per-annotator
// scale factors fitted by EM (Cheng et al., 2019). The reference factor is the
// average of Dan Sheldon's factors, 0.7429. See [Rescale].
package domain
