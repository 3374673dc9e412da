package task

import "github.com/LynnColeArt/nnx/profile"

// Register word indices of the job configuration window.
const (
	RegWeightsAddr = iota
	RegInfeatAddr
	RegOutfeatAddr
	RegScaleAddr
	RegScaleShiftAddr
	RegScaleBiasAddr
	RegInfeatD0Stride
	RegInfeatD1Stride
	RegInfeatD2Stride
	RegOutfeatD0Stride
	RegOutfeatD1Stride
	RegOutfeatD2Stride
	RegWeightsD0Stride
	RegWeightsD1Stride
	RegWeightsD2Stride
	RegSubtileRemainder0
	RegSubtileRemainder1
	RegSubtileRemainder2
	RegSubtileNumber0
	RegSubtileNumber1
	RegPadding
	RegWeightOffsetFactor
	RegFilterMask
	RegConf0
	RegStreaminAddr
)

// Registers returns the register image in ascending word order. Its length
// is the profile's RegisterWords.
func (d *Descriptor) Registers() []uint32 {
	data := &d.Data
	words := []uint32{
		RegWeightsAddr:        data.WeightsAddr,
		RegInfeatAddr:         data.InfeatAddr,
		RegOutfeatAddr:        data.OutfeatAddr,
		RegScaleAddr:          data.ScaleAddr,
		RegScaleShiftAddr:     data.ScaleShiftAddr,
		RegScaleBiasAddr:      data.ScaleBiasAddr,
		RegInfeatD0Stride:     data.InfeatStride.D0,
		RegInfeatD1Stride:     data.InfeatStride.D1,
		RegInfeatD2Stride:     data.InfeatStride.D2,
		RegOutfeatD0Stride:    data.OutfeatStride.D0,
		RegOutfeatD1Stride:    data.OutfeatStride.D1,
		RegOutfeatD2Stride:    data.OutfeatStride.D2,
		RegWeightsD0Stride:    data.WeightsStride.D0,
		RegWeightsD1Stride:    data.WeightsStride.D1,
		RegWeightsD2Stride:    data.WeightsStride.D2,
		RegSubtileRemainder0:  data.Subtile.Remainder.KoKi,
		RegSubtileRemainder1:  data.Subtile.Remainder.HoWo,
		RegSubtileRemainder2:  data.Subtile.Remainder.HiWi,
		RegSubtileNumber0:     data.Subtile.Number.KoKi,
		RegSubtileNumber1:     data.Subtile.Number.HoWo,
		RegPadding:            data.Padding,
		RegWeightOffsetFactor: data.WeightOffsetFactor,
		RegFilterMask:         data.FilterMask,
		RegConf0:              data.Conf0,
	}
	if d.profile.RegisterWords > profile.RegisterWordsBase {
		words = append(words, data.StreaminAddr)
	}
	return words
}

// RegisterNames labels the words returned by Registers.
var RegisterNames = [...]string{
	RegWeightsAddr:        "weights_addr",
	RegInfeatAddr:         "infeat_addr",
	RegOutfeatAddr:        "outfeat_addr",
	RegScaleAddr:          "scale_addr",
	RegScaleShiftAddr:     "scale_shift_addr",
	RegScaleBiasAddr:      "scale_bias_addr",
	RegInfeatD0Stride:     "infeat_d0_stride",
	RegInfeatD1Stride:     "infeat_d1_stride",
	RegInfeatD2Stride:     "infeat_d2_stride",
	RegOutfeatD0Stride:    "outfeat_d0_stride",
	RegOutfeatD1Stride:    "outfeat_d1_stride",
	RegOutfeatD2Stride:    "outfeat_d2_stride",
	RegWeightsD0Stride:    "weights_d0_stride",
	RegWeightsD1Stride:    "weights_d1_stride",
	RegWeightsD2Stride:    "weights_d2_stride",
	RegSubtileRemainder0:  "subtile_remainder_koki",
	RegSubtileRemainder1:  "subtile_remainder_howo",
	RegSubtileRemainder2:  "subtile_remainder_hiwi",
	RegSubtileNumber0:     "subtile_number_koki",
	RegSubtileNumber1:     "subtile_number_howo",
	RegPadding:            "padding",
	RegWeightOffsetFactor: "weight_offset_factor",
	RegFilterMask:         "filter_mask",
	RegConf0:              "conf0",
	RegStreaminAddr:       "streamin_addr",
}
