// Package segment turns raw video frames into candidate bounding boxes of
// moving regions using background-difference motion segmentation.
//
// Each frame is resized to the working resolution, converted to intensity
// and blurred. A per-pixel exponentially weighted running average models the
// background; pixels whose intensity differs from the rounded average by
// more than the threshold form a binary motion mask, which is dilated and
// split into externally bounded regions. Regions outside the configured area
// range are discarded.
//
// Boxes carry no identity. Association across frames belongs to package
// track.
package segment
